package datadef

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/danmuck/simlink/internal/protocol/wire"
)

var (
	ErrInvalidField     = errors.New("datadef: invalid field")
	ErrUnsupportedType  = errors.New("datadef: data type has no fixed wire size")
	ErrUnknownDatumID   = errors.New("datadef: tagged datum id not in definition")
	ErrDefinitionLength = errors.New("datadef: payload shorter than definition")
)

// MaxNameLen is the longest datum or units name that fits a 256-byte slot
// with its terminator.
const MaxNameLen = 255

// Field is one datum in a data definition, in registration order.
type Field struct {
	DatumName string
	// UnitsName is empty for unitless and string datums.
	UnitsName string
	DataType  DataType
	Epsilon   float32
	DatumID   uint32
}

func (f Field) Validate() error {
	if strings.TrimSpace(f.DatumName) == "" {
		return fmt.Errorf("%w: missing datum name", ErrInvalidField)
	}
	if f.DataType == TypeInvalid {
		return fmt.Errorf("%w: %q has invalid data type", ErrInvalidField, f.DatumName)
	}
	if len(f.DatumName) > MaxNameLen {
		return fmt.Errorf("%w: datum name is %d bytes, max %d", ErrInvalidField, len(f.DatumName), MaxNameLen)
	}
	if len(f.UnitsName) > MaxNameLen {
		return fmt.Errorf("%w: %q units name is %d bytes, max %d", ErrInvalidField, f.DatumName, len(f.UnitsName), MaxNameLen)
	}
	return nil
}

// Definition is the schema the host uses to report a definition ID.
type Definition struct {
	ID     uint32
	Fields []Field
}

// Value is one decoded datum.
type Value struct {
	DatumName string
	DatumID   uint32
	Type      DataType
	Int       int64
	Float     float64
	String    string
}

// Any returns the populated member for logging and JSON fan-out.
func (v Value) Any() any {
	switch {
	case v.Type == TypeInt32 || v.Type == TypeInt64:
		return v.Int
	case v.Type == TypeFloat32 || v.Type == TypeFloat64:
		return v.Float
	case v.Type.IsString():
		return v.String
	default:
		return nil
	}
}

// DecodeValues reads one positional value per field, in order, from r.
func DecodeValues(def Definition, r *wire.Reader) ([]Value, error) {
	out := make([]Value, 0, len(def.Fields))
	for _, f := range def.Fields {
		v, err := decodeValue(f, r)
		if err != nil {
			return nil, fmt.Errorf("definition %d field %q: %w", def.ID, f.DatumName, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodeTagged reads count (datumID, value) pairs, as sent for requests made
// with RequestFlagTagged.
func DecodeTagged(def Definition, count int, r *wire.Reader) ([]Value, error) {
	out := make([]Value, 0, count)
	for range count {
		id, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		idx := slices.IndexFunc(def.Fields, func(f Field) bool { return f.DatumID == id })
		if idx < 0 {
			return nil, fmt.Errorf("%w: definition=%d datum=%d", ErrUnknownDatumID, def.ID, id)
		}
		v, err := decodeValue(def.Fields[idx], r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeValue(f Field, r *wire.Reader) (Value, error) {
	v := Value{DatumName: f.DatumName, DatumID: f.DatumID, Type: f.DataType}
	var err error
	switch f.DataType {
	case TypeInt32:
		var n int32
		n, err = r.ReadInt32()
		v.Int = int64(n)
	case TypeInt64:
		v.Int, err = r.ReadInt64()
	case TypeFloat32:
		var x float32
		x, err = r.ReadFloat32()
		v.Float = float64(x)
	case TypeFloat64:
		v.Float, err = r.ReadFloat64()
	default:
		size, ok := f.DataType.Size()
		if !ok || !f.DataType.IsString() {
			return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedType, f.DataType)
		}
		v.String, err = r.ReadString(size)
	}
	if err != nil {
		return Value{}, errors.Join(ErrDefinitionLength, err)
	}
	return v, nil
}

// Catalog tracks definitions this client registered with the host.
type Catalog struct {
	mu   sync.RWMutex
	defs map[uint32]Definition
}

func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[uint32]Definition)}
}

// Add appends fields to definition id, creating it if needed.
func (c *Catalog) Add(id uint32, fields ...Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	def := c.defs[id]
	def.ID = id
	def.Fields = append(def.Fields, fields...)
	c.defs[id] = def
}

func (c *Catalog) Get(id uint32) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[id]
	if !ok {
		return Definition{}, false
	}
	def.Fields = slices.Clone(def.Fields)
	return def, true
}

func (c *Catalog) Has(id uint32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.defs[id]
	return ok
}

// IDs returns registered definition IDs in ascending order.
func (c *Catalog) IDs() []uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]uint32, 0, len(c.defs))
	for id := range c.defs {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
