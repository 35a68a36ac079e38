package cil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil"
	"github.com/V0v1kkk/DotNetMetadataMcpServer/internal/cil/ciltest"
)

// Test Plan for PE image loading:
// - Load a synthetic managed PE and reach its metadata
// - Reject bytes that are not a PE file
// - Reject a PE without a CLI header directory

func TestLoadImage_Managed(t *testing.T) {
	t.Parallel()

	b := ciltest.NewBuilder("TestLib")
	b.AddType("MyLib", "Foo", cil.TypePublic, 0)

	img, err := cil.LoadImage(b.PE())
	require.NoError(t, err)
	assert.Equal(t, "TestLib", img.Name)
	require.NotNil(t, img.Metadata)
	assert.Equal(t, uint32(1), img.Metadata.RowCount(cil.TableTypeDef))
}

func TestLoadImage_NotPE(t *testing.T) {
	t.Parallel()

	_, err := cil.LoadImage([]byte("this is not a binary image"))
	assert.ErrorIs(t, err, cil.ErrNotManagedImage)
}

func TestLoadImage_NoCLIHeader(t *testing.T) {
	t.Parallel()

	b := ciltest.NewBuilder("TestLib")
	b.AddType("MyLib", "Foo", cil.TypePublic, 0)
	data := b.PE()

	// Zero the COM descriptor directory entry: a valid native PE, but
	// not a managed one.
	const optStart = 0x80 + 4 + 20
	dir := optStart + 112 + 14*8
	for i := 0; i < 8; i++ {
		data[dir+i] = 0
	}
	_, err := cil.LoadImage(data)
	assert.ErrorIs(t, err, cil.ErrNotManagedImage)
}

func TestLoadImage_TruncatedMetadata(t *testing.T) {
	t.Parallel()

	b := ciltest.NewBuilder("TestLib")
	b.AddType("MyLib", "Foo", cil.TypePublic, 0)
	data := b.PE()

	_, err := cil.LoadImage(data[:len(data)-16])
	assert.Error(t, err)
}
