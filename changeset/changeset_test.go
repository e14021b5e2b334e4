package changeset

import (
	"testing"

	"github.com/mulertech/database/codec"
	"github.com/mulertech/database/entity"
	"github.com/mulertech/database/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPost struct {
	ID      int64  `db:"id,pk,auto_increment"`
	Title   string `db:"title,type=varchar(255)"`
	TagIDs  *entity.TrackedCollection[int64]
}

func init() {
	metadata.Register(testPost{})
}

func TestDetectScalarChange(t *testing.T) {
	em, err := metadata.Get(testPost{})
	require.NoError(t, err)

	p := &testPost{ID: 1, Title: "after"}
	me := &entity.ManagedEntity{
		Instance: p,
		State:    entity.StateManaged,
		Snapshot: map[string]any{"ID": int64(1), "Title": "before"},
	}

	cs := Detect(me, em)
	require.Contains(t, cs.Fields, "Title")
	assert.Equal(t, "before", cs.Fields["Title"].Old)
	assert.Equal(t, "after", cs.Fields["Title"].New)
	assert.NotContains(t, cs.Fields, "ID")
}

func TestDetectNoChangeIsEmpty(t *testing.T) {
	em, err := metadata.Get(testPost{})
	require.NoError(t, err)

	p := &testPost{ID: 1, Title: "same"}
	me := &entity.ManagedEntity{
		Instance: p,
		State:    entity.StateManaged,
		Snapshot: map[string]any{"ID": int64(1), "Title": "same"},
	}

	cs := Detect(me, em)
	assert.True(t, cs.IsEmpty())
}

func TestFullSnapshotCapturesAllColumns(t *testing.T) {
	em, err := metadata.Get(testPost{})
	require.NoError(t, err)

	p := &testPost{ID: 3, Title: "hello"}
	snap := FullSnapshot(p, em)
	assert.Equal(t, int64(3), snap["ID"])
	assert.Equal(t, "hello", snap["Title"])
}

func TestEqualUsedDirectlyForSanityOnDecimalScale(t *testing.T) {
	assert.True(t, codec.Equal(10.001, 10.0009, codec.Decimal, 2))
}
