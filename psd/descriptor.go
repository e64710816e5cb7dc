package psd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// OSType tags the values stored inside a descriptor
type OSType string

const (
	ReferenceType   OSType = "obj "
	DescriptorType  OSType = "Objc"
	ListType        OSType = "VlLs"
	DoubleType      OSType = "doub"
	UnitFloatType   OSType = "UntF"
	UnitFloatsType  OSType = "UnFl"
	StringType      OSType = "TEXT"
	EnumeratedType  OSType = "enum"
	IntegerType     OSType = "long"
	LargeIntType    OSType = "comp"
	BooleanType     OSType = "bool"
	GlobalObject    OSType = "GlbO"
	ClassType       OSType = "type"
	GlobalClassType OSType = "GlbC"
	AliasType       OSType = "alis"
	RawDataType     OSType = "tdta"
	PathType        OSType = "Pth "
)

// Descriptor is a keyed, ordered set of typed values
type Descriptor struct {
	Name    string
	ClassID string
	Keys    []string
	Items   map[string]any
}

func (d *Descriptor) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.Items[key]
	return v, ok
}

// Text returns the string stored under key
func (d *Descriptor) Text(key string) string {
	v, _ := d.Get(key)
	s, _ := v.(string)
	return s
}

func (d *Descriptor) Bytes(key string) []byte {
	v, _ := d.Get(key)
	b, _ := v.([]byte)
	return b
}

type UnitFloat struct {
	Unit  string
	Value float64
}

type UnitFloats struct {
	Unit   string
	Values []float64
}

type Enum struct {
	Type  string
	Value string
}

type Class struct {
	Name string
	ID   string
}

// ReferenceItem is one element of an 'obj ' reference
type ReferenceItem struct {
	Form  string
	Class Class
	Key   string
	Value any
}

type descriptorReader struct {
	d *BinaryDeserializer
}

// ReadDescriptor decodes an action descriptor (class name, class id, items)
func ReadDescriptor(d *BinaryDeserializer) (*Descriptor, error) {
	r := descriptorReader{d: d}
	return r.descriptor()
}

func (r descriptorReader) id() (string, error) {
	length, err := r.d.GetUInt32()
	if err != nil {
		return "", err
	}
	if length == 0 {
		length = 4
	}
	b, err := r.d.GetBytes(int(length))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r descriptorReader) class() (c Class, err error) {
	c.Name, err = r.d.GetUnicodeString()
	if err != nil {
		return
	}
	c.ID, err = r.id()
	return
}

func (r descriptorReader) descriptor() (desc *Descriptor, err error) {
	desc = &Descriptor{Items: make(map[string]any)}
	c, err := r.class()
	if err != nil {
		return
	}
	desc.Name, desc.ClassID = c.Name, c.ID

	count, err := r.d.GetUInt32()
	if err != nil {
		return
	}
	for i := 0; i < int(count); i++ {
		var key, osType string
		key, err = r.id()
		if err != nil {
			return
		}
		osType, err = r.d.GetSignature()
		if err != nil {
			return
		}
		var value any
		value, err = r.value(OSType(osType))
		if err != nil {
			err = fmt.Errorf("key %q: %w", key, err)
			return
		}
		log.Tracef("descriptor %s: %s (%s)", desc.ClassID, key, osType)
		if _, seen := desc.Items[key]; !seen {
			desc.Keys = append(desc.Keys, key)
		}
		desc.Items[key] = value
	}
	return
}

func (r descriptorReader) value(t OSType) (value any, err error) {
	switch t {
	case ReferenceType:
		return r.reference()
	case DescriptorType, GlobalObject:
		return r.descriptor()
	case ListType:
		return r.list()
	case DoubleType:
		return r.d.GetFloat64()
	case UnitFloatType:
		var uf UnitFloat
		uf.Unit, err = r.d.GetSignature()
		if err != nil {
			return
		}
		uf.Value, err = r.d.GetFloat64()
		return uf, err
	case UnitFloatsType:
		var ufs UnitFloats
		ufs.Unit, err = r.d.GetSignature()
		if err != nil {
			return
		}
		var count uint32
		count, err = r.d.GetUInt32()
		if err != nil {
			return
		}
		for i := 0; i < int(count); i++ {
			var f float64
			f, err = r.d.GetFloat64()
			if err != nil {
				return
			}
			ufs.Values = append(ufs.Values, f)
		}
		return ufs, nil
	case StringType:
		return r.d.GetUnicodeString()
	case EnumeratedType:
		var e Enum
		e.Type, err = r.id()
		if err != nil {
			return
		}
		e.Value, err = r.id()
		return e, err
	case IntegerType:
		return r.d.GetInt32()
	case LargeIntType:
		return r.d.GetInt64()
	case BooleanType:
		var b byte
		b, err = r.d.ReadByte()
		return b != 0, err
	case ClassType, GlobalClassType:
		return r.class()
	case AliasType, RawDataType, PathType:
		var length uint32
		length, err = r.d.GetUInt32()
		if err != nil {
			return
		}
		return r.d.GetBytes(int(length))
	}
	return nil, fmt.Errorf("%w: descriptor value type %q", ErrUnsupported, string(t))
}

func (r descriptorReader) list() (items []any, err error) {
	count, err := r.d.GetUInt32()
	if err != nil {
		return
	}
	for i := 0; i < int(count); i++ {
		var osType string
		osType, err = r.d.GetSignature()
		if err != nil {
			return
		}
		var value any
		value, err = r.value(OSType(osType))
		if err != nil {
			return
		}
		items = append(items, value)
	}
	return
}

func (r descriptorReader) reference() (items []ReferenceItem, err error) {
	count, err := r.d.GetUInt32()
	if err != nil {
		return
	}
	for i := 0; i < int(count); i++ {
		var item ReferenceItem
		item.Form, err = r.d.GetSignature()
		if err != nil {
			return
		}
		switch item.Form {
		case "prop":
			item.Class, err = r.class()
			if err == nil {
				item.Key, err = r.id()
			}
		case "Clss":
			item.Class, err = r.class()
		case "Enmr":
			item.Class, err = r.class()
			if err == nil {
				var e Enum
				e.Type, err = r.id()
				if err == nil {
					e.Value, err = r.id()
				}
				item.Value = e
			}
		case "rele":
			item.Class, err = r.class()
			if err == nil {
				item.Value, err = r.d.GetUInt32()
			}
		case "Idnt", "indx":
			item.Value, err = r.d.GetInt32()
		case "name":
			item.Value, err = r.d.GetUnicodeString()
		default:
			err = fmt.Errorf("%w: reference form %q", ErrUnsupported, item.Form)
		}
		if err != nil {
			return
		}
		items = append(items, item)
	}
	return
}
