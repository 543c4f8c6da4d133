package protocol

// FieldType is the JSON type a schema field must hold.
type FieldType int

const (
	String FieldType = iota
	Object
	Array
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "unknown"
	}
}

// Field is one required top-level field.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the exact set of top-level fields a message must carry.
type Schema []Field

// Schemas for every inbound action.
var (
	JoinSchema = Schema{
		{"action", String},
		{"user_id", String},
		{"channel_id", String},
		{"room_id", String},
	}
	SendSchema = Schema{
		{"action", String},
		{"payload", String},
	}
	DisconnectSchema = Schema{
		{"action", String},
	}
)

// Validate reports whether msg has exactly the fields of s, each with the declared type.
// Extra fields, missing fields and type mismatches all fail.
func (s Schema) Validate(msg map[string]any) bool {
	if len(msg) != len(s) {
		return false
	}
	for _, f := range s {
		v, ok := msg[f.Name]
		if !ok || !f.Type.matches(v) {
			return false
		}
	}
	return true
}

func (t FieldType) matches(v any) bool {
	switch t {
	case String:
		_, ok := v.(string)
		return ok
	case Object:
		_, ok := v.(map[string]any)
		return ok
	case Array:
		_, ok := v.([]any)
		return ok
	}
	return false
}
