package stagedef

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// FieldInfo describes one addressable stage field for generic inspectors.
// Min and Max bound the legal stored range; for enum fields they span the
// declared values, not the storage width.
type FieldInfo struct {
	Path string
	Type FieldType
	Min  float64
	Max  float64
}

// Field resolves a path like "goals[2].position.x" or "falloutLevel" and
// returns the value it names. Struct and vector paths resolve to their Go
// values; list paths need an index.
func (s *Stage) Field(path string) (any, error) {
	v, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// SetField assigns a scalar field by path. Numeric values convert across
// widths with range checking; a value that does not fit the field's width
// or enum range is an unencodable edit.
func (s *Stage) SetField(path string, value any) error {
	v, err := s.resolve(path)
	if err != nil {
		return err
	}
	if !v.CanSet() {
		return fmt.Errorf("%s: %w", path, ErrUnknownField)
	}

	switch v.Kind() {
	case reflect.String:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s wants a string, got %T: %w", path, value, ErrUnencodableEdit)
		}
		if strings.ContainsRune(str, 0) {
			return fmt.Errorf("%s: string contains a NUL byte: %w", path, ErrUnencodableEdit)
		}
		v.SetString(str)
	case reflect.Float32:
		f, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("%s wants a number, got %T: %w", path, value, ErrUnencodableEdit)
		}
		v.SetFloat(f)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		f, ok := toFloat(value)
		if !ok || f != math.Trunc(f) || f < 0 {
			return fmt.Errorf("%s wants an unsigned integer, got %v: %w", path, value, ErrUnencodableEdit)
		}
		if v.OverflowUint(uint64(f)) {
			return fmt.Errorf("%s: %v exceeds the field width: %w", path, value, ErrUnencodableEdit)
		}
		v.SetUint(uint64(f))
	case reflect.Int, reflect.Int32:
		f, ok := toFloat(value)
		if !ok || f != math.Trunc(f) {
			return fmt.Errorf("%s wants an integer, got %v: %w", path, value, ErrUnencodableEdit)
		}
		if v.OverflowInt(int64(f)) {
			return fmt.Errorf("%s: %v exceeds the field width: %w", path, value, ErrUnencodableEdit)
		}
		v.SetInt(int64(f))
	default:
		return fmt.Errorf("%s is not a scalar field: %w", path, ErrUnknownField)
	}

	// Enum fields reject values outside their declared set even though
	// they fit the storage width.
	switch t := v.Interface().(type) {
	case GoalType:
		if !t.Valid() {
			return fmt.Errorf("%s: %v: %w", path, t, ErrUnencodableEdit)
		}
	case BananaType:
		if !t.Valid() {
			return fmt.Errorf("%s: %v: %w", path, t, ErrUnencodableEdit)
		}
	}
	return nil
}

// FieldInfo returns metadata for a scalar field path.
func (s *Stage) FieldInfo(path string) (FieldInfo, error) {
	v, err := s.resolve(path)
	if err != nil {
		return FieldInfo{}, err
	}

	info := FieldInfo{Path: path}
	switch v.Interface().(type) {
	case GoalType:
		info.Type = FieldU8
		info.Min, info.Max = float64(GoalBlue), float64(GoalRed)
		return info, nil
	case BananaType:
		info.Type = FieldU32
		info.Min, info.Max = float64(BananaSingle), float64(BananaBunch)
		return info, nil
	}

	switch v.Kind() {
	case reflect.Uint8:
		info.Type = FieldU8
		info.Max = math.MaxUint8
	case reflect.Uint16:
		info.Type = FieldU16
		info.Max = math.MaxUint16
	case reflect.Uint32:
		info.Type = FieldU32
		info.Max = math.MaxUint32
	case reflect.Int, reflect.Int32:
		info.Type = FieldI32
		info.Min, info.Max = math.MinInt32, math.MaxInt32
	case reflect.Float32:
		info.Type = FieldF32
		info.Min = -math.MaxFloat32
		info.Max = math.MaxFloat32
	case reflect.String:
		info.Type = FieldString
	default:
		return FieldInfo{}, fmt.Errorf("%s is not a scalar field: %w", path, ErrUnknownField)
	}
	return info, nil
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case GoalType:
		return float64(n), true
	case BananaType:
		return float64(n), true
	}
	return 0, false
}

// resolve walks a dotted path through the stage value. Path names use the
// field's lower-camel spelling; list elements are indexed with brackets.
func (s *Stage) resolve(path string) (reflect.Value, error) {
	v := reflect.ValueOf(s).Elem()
	if path == "" {
		return reflect.Value{}, fmt.Errorf("empty path: %w", ErrUnknownField)
	}
	for _, seg := range strings.Split(path, ".") {
		name, index, hasIndex, err := splitSegment(seg)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%s: %w", path, err)
		}
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("%s: %q has no fields: %w", path, seg, ErrUnknownField)
		}
		v = fieldByPathName(v, name)
		if !v.IsValid() {
			return reflect.Value{}, fmt.Errorf("%s: no field %q: %w", path, name, ErrUnknownField)
		}
		if hasIndex {
			if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
				return reflect.Value{}, fmt.Errorf("%s: %q is not a list: %w", path, name, ErrUnknownField)
			}
			if index < 0 || index >= v.Len() {
				return reflect.Value{}, fmt.Errorf("%s: index %d of %d: %w", path, index, v.Len(), ErrUnknownField)
			}
			v = v.Index(index)
		}
	}
	return v, nil
}

func splitSegment(seg string) (name string, index int, hasIndex bool, err error) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, 0, false, nil
	}
	if !strings.HasSuffix(seg, "]") || open == 0 {
		return "", 0, false, fmt.Errorf("bad segment %q: %w", seg, ErrUnknownField)
	}
	idx, err := strconv.Atoi(seg[open+1 : len(seg)-1])
	if err != nil {
		return "", 0, false, fmt.Errorf("bad index in %q: %w", seg, ErrUnknownField)
	}
	return seg[:open], idx, true, nil
}

// fieldByPathName matches a lower-camel path name against the exported
// struct fields. Unexported fields are never addressable by path.
func fieldByPathName(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if strings.EqualFold(f.Name, name) {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}
