package uow

import (
	"context"
	"reflect"
	"testing"

	"github.com/mulertech/database/changeset"
	"github.com/mulertech/database/entity"
	"github.com/mulertech/database/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type joinPost struct {
	ID  int64 `db:"id,pk,auto_increment"`
	Tag *entity.TrackedCollection[int64]
}

// postTags stands in only for its reflect.Type name; joinTableColumns
// derives the pivot table name from RelationMetadata.JoinEntity's type
// name the way the metadata scanner would for a declared join entity.
type postTags struct{}

// joinPostMetadata is built by hand rather than through metadata.Register,
// because the registry's struct-tag scanner resolves a many-to-many
// relation's Target from the declared Go field type (scan.go's
// parseRelTag), which does not apply to a TrackedCollection[int64] holding
// raw target primary keys rather than target struct pointers. Exercising
// RenderJoinInsert/RenderJoinDelete only requires a RelationMetadata with
// the right shape, so the test supplies one directly.
func joinPostMetadata() *metadata.EntityMetadata {
	t := reflect.TypeOf(joinPost{})
	idCol := &metadata.ColumnMetadata{FieldName: "ID", FieldType: reflect.TypeOf(int64(0))}
	return &metadata.EntityMetadata{
		Type:       t,
		Table:      "join_posts",
		PrimaryKey: idCol,
		Columns:    []*metadata.ColumnMetadata{idCol},
		ColumnsByField: map[string]*metadata.ColumnMetadata{
			"ID": idCol,
		},
		Relations: []*metadata.RelationMetadata{
			{
				FieldName:       "Tag",
				Kind:            metadata.ManyToMany,
				JoinEntity:      reflect.TypeOf(postTags{}),
				JoinColumn:      "join_post_id",
				InverseProperty: "tag_id",
			},
		},
	}
}

func TestApplyCollectionDeltasRendersJoinInsertsAndDeletes(t *testing.T) {
	em := joinPostMetadata()
	p := &joinPost{ID: 7, Tag: entity.NewTrackedCollection[int64]([]int64{1, 2})}
	p.Tag.Add(3)
	p.Tag.Remove(1)

	me := &entity.ManagedEntity{Identity: entity.Identity{Type: em.Type, PK: int64(7)}, Instance: p, State: entity.StateManaged}
	cs := changeset.Detect(me, em)
	require.Contains(t, cs.Collections, "Tag")

	conn := &fakeConn{}
	u := New(conn, metadata.NewRegistry())
	tx := &fakeTx{}

	err := u.applyCollectionDeltas(context.Background(), tx, []*scheduledWork{{me: me, em: em, cs: cs}})
	require.NoError(t, err)

	require.Len(t, tx.execs, 2)
	assert.Contains(t, tx.execs[0].query, "INSERT INTO")
	assert.Contains(t, tx.execs[0].query, "post_tags")
	assert.Equal(t, []any{int64(7), int64(3)}, tx.execs[0].args)
	assert.Contains(t, tx.execs[1].query, "DELETE FROM")
	assert.Equal(t, []any{int64(7), int64(1)}, tx.execs[1].args)
}
