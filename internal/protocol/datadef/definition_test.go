package datadef

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/simlink/internal/protocol/wire"
	"github.com/danmuck/simlink/internal/testutil/testlog"
)

func aircraftDefinition() Definition {
	return Definition{ID: 7, Fields: []Field{
		{DatumName: "PLANE ALTITUDE", UnitsName: "feet", DataType: TypeFloat64, DatumID: 1},
		{DatumName: "GEAR HANDLE POSITION", UnitsName: "bool", DataType: TypeInt32, DatumID: 2},
		{DatumName: "TITLE", DataType: TypeString256, DatumID: 3},
	}}
}

func TestDecodeValuesPositional(t *testing.T) {
	testlog.Start(t)
	b := wire.NewBuffer(wire.DefaultCapacity)
	b.PutFloat64(3500.5)
	b.PutInt32(1)
	b.PutString("Cessna 172", 256)
	if err := b.Err(); err != nil {
		t.Fatalf("encode: %v", err)
	}

	vals, err := DecodeValues(aircraftDefinition(), wire.NewReader(b.Bytes()[wire.HeaderLen:]))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(vals) != 3 {
		t.Fatalf("unexpected count: %d", len(vals))
	}
	if vals[0].Float != 3500.5 || vals[1].Int != 1 || vals[2].String != "Cessna 172" {
		t.Fatalf("unexpected values: %+v", vals)
	}
	if vals[2].Any() != "Cessna 172" || vals[0].Any() != 3500.5 {
		t.Fatalf("unexpected Any: %v %v", vals[2].Any(), vals[0].Any())
	}
}

func TestDecodeValuesShortPayload(t *testing.T) {
	testlog.Start(t)
	_, err := DecodeValues(aircraftDefinition(), wire.NewReader([]byte{0, 0, 0, 0}))
	if !errors.Is(err, ErrDefinitionLength) || !errors.Is(err, wire.ErrTruncatedFrame) {
		t.Fatalf("expected definition length error, got %v", err)
	}
}

func TestDecodeValuesUnsupportedType(t *testing.T) {
	testlog.Start(t)
	def := Definition{ID: 1, Fields: []Field{{DatumName: "STRUCT LATLONALT", DataType: TypeLatLonAlt}}}
	if _, err := DecodeValues(def, wire.NewReader(make([]byte, 24))); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestDecodeTagged(t *testing.T) {
	testlog.Start(t)
	b := wire.NewBuffer(wire.DefaultCapacity)
	b.PutUint32(2)
	b.PutInt32(0)
	b.PutUint32(1)
	b.PutFloat64(120)

	vals, err := DecodeTagged(aircraftDefinition(), 2, wire.NewReader(b.Bytes()[wire.HeaderLen:]))
	if err != nil {
		t.Fatalf("decode tagged: %v", err)
	}
	if vals[0].DatumName != "GEAR HANDLE POSITION" || vals[1].Float != 120 {
		t.Fatalf("unexpected values: %+v", vals)
	}

	b.Clean()
	b.PutUint32(99)
	if _, err := DecodeTagged(aircraftDefinition(), 1, wire.NewReader(b.Bytes()[wire.HeaderLen:])); !errors.Is(err, ErrUnknownDatumID) {
		t.Fatalf("expected ErrUnknownDatumID, got %v", err)
	}
}

func TestCatalog(t *testing.T) {
	testlog.Start(t)
	c := NewCatalog()
	c.Add(9, Field{DatumName: "A", DataType: TypeInt32})
	c.Add(3, Field{DatumName: "B", DataType: TypeInt32})
	c.Add(9, Field{DatumName: "C", DataType: TypeInt32})

	if ids := c.IDs(); len(ids) != 2 || ids[0] != 3 || ids[1] != 9 {
		t.Fatalf("unexpected ids: %v", ids)
	}
	def, ok := c.Get(9)
	if !ok || len(def.Fields) != 2 || def.Fields[1].DatumName != "C" {
		t.Fatalf("unexpected definition: %+v", def)
	}
	def.Fields[0].DatumName = "mutated"
	if again, _ := c.Get(9); again.Fields[0].DatumName != "A" {
		t.Fatalf("Get must return a copy")
	}
}

func TestParseDataType(t *testing.T) {
	testlog.Start(t)
	got, err := ParseDataType("string260")
	if err != nil || got != TypeString260 {
		t.Fatalf("unexpected parse: %v %v", got, err)
	}
	if n, ok := got.Size(); !ok || n != 260 {
		t.Fatalf("unexpected size: %d %v", n, ok)
	}
	if _, err := ParseDataType("invalid"); err == nil {
		t.Fatalf("expected invalid to be rejected")
	}
}

func TestFieldValidateNameLimits(t *testing.T) {
	testlog.Start(t)
	ok := Field{DatumName: strings.Repeat("N", MaxNameLen), UnitsName: strings.Repeat("u", MaxNameLen), DataType: TypeFloat64}
	if err := ok.Validate(); err != nil {
		t.Fatalf("names at the limit should pass: %v", err)
	}
	longName := Field{DatumName: strings.Repeat("N", MaxNameLen+1), DataType: TypeFloat64}
	if err := longName.Validate(); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField for long name, got %v", err)
	}
	longUnits := Field{DatumName: "PLANE ALTITUDE", UnitsName: strings.Repeat("u", 300), DataType: TypeFloat64}
	if err := longUnits.Validate(); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField for long units, got %v", err)
	}
}
