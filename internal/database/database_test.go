package database

import (
	"testing"

	"ledgerpay/config"
	"ledgerpay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestDialector(t *testing.T) {
	assert.Equal(t, "postgres", Dialector("postgres://u:p@localhost/db").Name())
	assert.Equal(t, "postgres", Dialector("host=localhost user=u dbname=db").Name())
	assert.Equal(t, "sqlite", Dialector("file:test?mode=memory").Name())
	assert.Equal(t, "sqlite", Dialector("ledgerpay.db").Name())
	assert.Equal(t, "mysql", Dialector("u:p@tcp(localhost:3306)/ledger?parseTime=True").Name())
}

func TestMigrateAndSeedAdmin(t *testing.T) {
	db, err := NewDB(&config.DatabaseConfig{DSN: "file:dbtest?mode=memory&cache=shared"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	admin := config.AdminConfig{Email: "ops@example.com", Password: "s3cret"}
	require.NoError(t, SeedAdmin(db, admin))
	require.NoError(t, SeedAdmin(db, admin))

	var users []models.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].PasswordHash), []byte("s3cret")))
}
