package mongostore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/disgoorg/levelbot/levelbot/database/repositories"
)

func TestInsertErrorMapsDuplicateKeys(t *testing.T) {
	duplicate := mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error collection: levelbot.users"}},
	}
	assert.ErrorIs(t, insertError(duplicate), repositories.ErrConflict)

	other := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 121, Message: "Document failed validation"}}}
	assert.NotErrorIs(t, insertError(other), repositories.ErrConflict)

	plain := errors.New("server selection timeout")
	assert.Equal(t, plain, insertError(plain))
}
