package datadef

import "fmt"

// DataType is the host's datum encoding selector.
type DataType int32

const (
	TypeInvalid DataType = iota
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeString8
	TypeString32
	TypeString64
	TypeString128
	TypeString256
	TypeString260
	TypeStringV
	TypeInitPosition
	TypeMarkerState
	TypeWaypoint
	TypeLatLonAlt
	TypeXYZ
)

var dataTypeNames = map[DataType]string{
	TypeInvalid:      "invalid",
	TypeInt32:        "int32",
	TypeInt64:        "int64",
	TypeFloat32:      "float32",
	TypeFloat64:      "float64",
	TypeString8:      "string8",
	TypeString32:     "string32",
	TypeString64:     "string64",
	TypeString128:    "string128",
	TypeString256:    "string256",
	TypeString260:    "string260",
	TypeStringV:      "stringv",
	TypeInitPosition: "initposition",
	TypeMarkerState:  "markerstate",
	TypeWaypoint:     "waypoint",
	TypeLatLonAlt:    "latlonalt",
	TypeXYZ:          "xyz",
}

var fixedSizes = map[DataType]int{
	TypeInt32:     4,
	TypeInt64:     8,
	TypeFloat32:   4,
	TypeFloat64:   8,
	TypeString8:   8,
	TypeString32:  32,
	TypeString64:  64,
	TypeString128: 128,
	TypeString256: 256,
	TypeString260: 260,
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("datatype(%d)", int32(t))
}

// Size returns the fixed wire size of t, or false for types this client
// cannot decode positionally.
func (t DataType) Size() (int, bool) {
	n, ok := fixedSizes[t]
	return n, ok
}

func (t DataType) IsString() bool {
	return t >= TypeString8 && t <= TypeString260
}

// ParseDataType maps a config name ("float64", "string256") to a DataType.
func ParseDataType(name string) (DataType, error) {
	for t, n := range dataTypeNames {
		if n == name && t != TypeInvalid {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("datadef: unknown data type %q", name)
}

// Period selects how often the host reports a data request.
type Period int32

const (
	PeriodNever Period = iota
	PeriodOnce
	PeriodVisualFrame
	PeriodSimFrame
	PeriodSecond
)

func (p Period) String() string {
	switch p {
	case PeriodNever:
		return "never"
	case PeriodOnce:
		return "once"
	case PeriodVisualFrame:
		return "visual_frame"
	case PeriodSimFrame:
		return "sim_frame"
	case PeriodSecond:
		return "second"
	default:
		return fmt.Sprintf("period(%d)", int32(p))
	}
}

// ObjectType filters request-by-type queries.
type ObjectType int32

const (
	ObjectUser ObjectType = iota
	ObjectAll
	ObjectAircraft
	ObjectHelicopter
	ObjectBoat
	ObjectGround
)

func (o ObjectType) String() string {
	switch o {
	case ObjectUser:
		return "user"
	case ObjectAll:
		return "all"
	case ObjectAircraft:
		return "aircraft"
	case ObjectHelicopter:
		return "helicopter"
	case ObjectBoat:
		return "boat"
	case ObjectGround:
		return "ground"
	default:
		return fmt.Sprintf("objecttype(%d)", int32(o))
	}
}

// Data request flags.
const (
	RequestFlagDefault int32 = 0x0
	RequestFlagChanged int32 = 0x1
	RequestFlagTagged  int32 = 0x2
)

// ObjectIDUser addresses the user's own simulated object.
const ObjectIDUser uint32 = 0
