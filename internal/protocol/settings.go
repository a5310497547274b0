package protocol

// Map codes as they appear in a room's settings string. Each code selects one
// arena; a settings string concatenates the rotation the room cycles through.
var mapNames = map[byte]string{
	'A': "Paid Parking",
	'B': "Shady Warehouse",
	'C': "Suburbia",
	'D': "The Woods",
	'E': "Bastille",
	'F': "Hedge Maze",
	'G': "Temple",
}

// MapName returns the display name for a map code, or empty if unknown.
func MapName(code byte) string {
	return mapNames[code]
}

// RoomSettings is a decoded settings string: the raw codes plus the resolved
// rotation, in cycle order.
type RoomSettings struct {
	Raw      string
	Rotation []string
}

// FirstMapCode returns the leading map code, used in room-info responses.
func (s RoomSettings) FirstMapCode() byte {
	if s.Raw == "" {
		return 0
	}
	return s.Raw[0]
}

// DecodeSettings resolves the map rotation of a raw settings string. The
// string is client-supplied and stored verbatim on the room; codes this
// build does not know are skipped rather than rejected, so a newer client
// never loses its room.
func DecodeSettings(raw string) RoomSettings {
	rot := make([]string, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if name, ok := mapNames[raw[i]]; ok {
			rot = append(rot, name)
		}
	}
	return RoomSettings{Raw: raw, Rotation: rot}
}
