package cil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil/ciltest"
)

// Test Plan for the metadata root reader:
// - Parse a synthetic metadata blob: version, heaps, table row counts
// - Reject blobs without the BSJB signature
// - Reject truncated blobs and out-of-range heap offsets
// - Resolve assembly and assembly-reference names through the heaps

func TestNewMetadata_ParsesSyntheticImage(t *testing.T) {
	t.Parallel()

	b := ciltest.NewBuilder("TestLib")
	core := b.AddAssemblyRef("System.Runtime")
	obj := b.AddTypeRef(core, "System", "Object")
	tb := b.AddType("MyLib", "Foo", cil.TypePublic, ciltest.TypeRefCoded(obj))
	tb.AddMethod(cil.MethodPublic, "Bar", ciltest.SigMethod(true, ciltest.TVoid))

	md, err := b.Metadata()
	require.NoError(t, err)

	assert.Equal(t, "v4.0.30319", md.Version)
	assert.Equal(t, uint32(1), md.RowCount(cil.TableModule))
	assert.Equal(t, uint32(1), md.RowCount(cil.TableTypeDef))
	assert.Equal(t, uint32(1), md.RowCount(cil.TableMethodDef))
	assert.Equal(t, uint32(0), md.RowCount(cil.TableProperty))

	name, err := md.AssemblyName()
	require.NoError(t, err)
	assert.Equal(t, "TestLib", name)

	refName, err := md.AssemblyRefName(core)
	require.NoError(t, err)
	assert.Equal(t, "System.Runtime", refName)
}

func TestNewMetadata_RejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, cil.ErrNotManagedImage},
		{"wrong signature", []byte("MZ\x00\x00\x00\x00\x00\x00"), cil.ErrNotManagedImage},
		{"truncated after signature", []byte{0x42, 0x53, 0x4A, 0x42, 1, 0}, cil.ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cil.NewMetadata(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewMetadata_TruncatedTableStream(t *testing.T) {
	t.Parallel()

	b := ciltest.NewBuilder("TestLib")
	b.AddType("MyLib", "Foo", cil.TypePublic, 0)
	blob := b.Bytes()

	// Cutting the blob short invalidates the last stream's extent.
	_, err := cil.NewMetadata(blob[:len(blob)-8])
	assert.ErrorIs(t, err, cil.ErrMalformed)
}

func TestMetadata_HeapBounds(t *testing.T) {
	t.Parallel()

	b := ciltest.NewBuilder("TestLib")
	b.AddType("MyLib", "Foo", cil.TypePublic, 0)
	md, err := b.Metadata()
	require.NoError(t, err)

	_, err = md.String(1 << 20)
	assert.ErrorIs(t, err, cil.ErrMalformed)
	_, err = md.Blob(1 << 20)
	assert.ErrorIs(t, err, cil.ErrMalformed)
}

func TestMetadata_TypeDefRows(t *testing.T) {
	t.Parallel()

	b := ciltest.NewBuilder("TestLib")
	first := b.AddType("MyLib", "First", cil.TypePublic, 0)
	first.AddField(cil.FieldPublic, "Count", ciltest.SigField(ciltest.TInt32))
	first.AddMethod(cil.MethodPublic, "Run", ciltest.SigMethod(true, ciltest.TVoid))
	second := b.AddType("MyLib", "Second", cil.TypePublic, 0)
	second.AddMethod(cil.MethodPublic, "Stop", ciltest.SigMethod(true, ciltest.TVoid))

	md, err := b.Metadata()
	require.NoError(t, err)

	row, err := md.TypeDef(1)
	require.NoError(t, err)
	assert.Equal(t, "First", row.Name)
	assert.Equal(t, "MyLib", row.Namespace)
	assert.Equal(t, 1, row.Fields.Len())
	assert.Equal(t, 1, row.Methods.Len())

	row, err = md.TypeDef(2)
	require.NoError(t, err)
	assert.Equal(t, "Second", row.Name)
	assert.Equal(t, 0, row.Fields.Len())
	assert.Equal(t, 1, row.Methods.Len())

	m, err := md.MethodDef(row.Methods.Start)
	require.NoError(t, err)
	assert.Equal(t, "Stop", m.Name)

	_, err = md.TypeDef(3)
	assert.ErrorIs(t, err, cil.ErrMalformed)
}
