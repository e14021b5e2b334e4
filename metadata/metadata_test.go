package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relUser struct {
	ID    int64      `db:"id,pk,auto_increment"`
	Posts []*relPost `rel:"one_to_many,target=relPost,inverse=Author"`
}

type relPost struct {
	ID     int64    `db:"id,pk,auto_increment"`
	Author *relUser `db:"author_id,fk=rel_users.id" rel:"many_to_one,target=relUser,inverse=Posts"`
}

// relPlainUser has no outgoing relations of its own, so tests exercising
// one entity's bad inverse declaration don't also need to satisfy some
// other entity's unrelated relation.
type relPlainUser struct {
	ID int64 `db:"id,pk,auto_increment"`
}

type relPostWrongInverse struct {
	ID     int64         `db:"id,pk,auto_increment"`
	Author *relPlainUser `db:"author_id,fk=rel_plain_users.id" rel:"many_to_one,target=relPlainUser,inverse=Missing"`
}

type relOther struct {
	ID    int64           `db:"id,pk,auto_increment"`
	Posts []*relPlainUser `rel:"one_to_many,target=relPlainUser"`
}

type relPostWrongTarget struct {
	ID     int64     `db:"id,pk,auto_increment"`
	Author *relOther `db:"author_id,fk=rel_others.id" rel:"many_to_one,target=relOther,inverse=Posts"`
}

func TestDefaultTableNameIsBareSnakeCase(t *testing.T) {
	r := NewRegistry()
	em, err := r.register(relUser{})
	require.NoError(t, err)
	assert.Equal(t, "rel_user", em.Table)
}

func TestValidateRelationsAcceptsReciprocalInverse(t *testing.T) {
	r := NewRegistry()
	_, err := r.register(relUser{})
	require.NoError(t, err)
	_, err = r.register(relPost{})
	require.NoError(t, err)

	assert.NoError(t, r.ValidateRelations())
}

func TestValidateRelationsRejectsMissingInverseField(t *testing.T) {
	r := NewRegistry()
	_, err := r.register(relPlainUser{})
	require.NoError(t, err)
	_, err = r.register(relPostWrongInverse{})
	require.NoError(t, err)

	err = r.ValidateRelations()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such relation field")
}

func TestValidateRelationsRejectsNonReciprocalTarget(t *testing.T) {
	r := NewRegistry()
	_, err := r.register(relOther{})
	require.NoError(t, err)
	_, err = r.register(relPostWrongTarget{})
	require.NoError(t, err)

	err = r.ValidateRelations()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "points back to")
}
