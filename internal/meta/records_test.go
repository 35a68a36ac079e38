package meta

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for record serialization:
// - Field names are camelCase on the wire
// - False classification flags are omitted, accessor booleans are not
// - NewTypeRecord initializes every collection

func TestTypeRecord_JSONShape(t *testing.T) {
	t.Parallel()

	rec := TypeRecord{
		FullName: "MyLib.Foo",
		Methods: []MethodRecord{{
			Name:       "Bar",
			ReturnType: "String",
			IsStatic:   true,
			Parameters: []ParameterRecord{{Name: "x", Type: "Int32", Modifier: ModifierValue}},
		}},
		Properties: []PropertyRecord{{
			Name:            "Name",
			Type:            "String",
			HasPublicGetter: true,
		}},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `"fullName":"MyLib.Foo"`)
	assert.Contains(t, text, `"returnType":"String"`)
	assert.Contains(t, text, `"isStatic":true`)
	assert.Contains(t, text, `"modifier":"value"`)
	// Accessor booleans always serialize, false included.
	assert.Contains(t, text, `"hasPublicSetter":false`)
	// False classification flags stay off the wire.
	assert.NotContains(t, text, "isAbstract")
	assert.NotContains(t, text, "isOverride")
}

func TestNewTypeRecord(t *testing.T) {
	t.Parallel()

	rec := NewTypeRecord("MyLib.Foo")
	assert.Equal(t, "MyLib.Foo", rec.FullName)
	assert.NotNil(t, rec.Implements)
	assert.NotNil(t, rec.Constructors)
	assert.NotNil(t, rec.Methods)
	assert.NotNil(t, rec.Properties)
	assert.NotNil(t, rec.Fields)
	assert.NotNil(t, rec.Events)
}
