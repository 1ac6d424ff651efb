package internal

import (
	"huddle/errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "secret")

	config, err := Load()

	req.NoError(err)
	req.Equal(DriverBadger, config.StoreDriver)
	req.Equal(5*time.Second, config.FetchTimeout)
	req.Equal(5, config.MaxResubscribeAttempts)
	req.Equal([]string{"*"}, config.Origins())
}

func TestLoad_From_Env_File(t *testing.T) {
	req := require.New(t)
	file := filepath.Join(t.TempDir(), ".env")
	req.NoError(os.WriteFile(file, []byte(
		"BADGER_FILEPATH=/tmp/huddle\nJWT_SECRET=secret\nSTORE_DRIVER=mongo\nMONGO_URI=mongodb://localhost:27017\n"+
			"ALLOWED_ORIGINS=https://a.example,https://b.example\n"), 0o600))
	// godotenv never overrides the environment, so start clean
	for _, key := range []string{"BADGER_FILEPATH", "JWT_SECRET", "STORE_DRIVER", "MONGO_URI", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
		req.NoError(os.Unsetenv(key))
	}

	config, err := Load(file)

	req.NoError(err)
	req.Equal(DriverMongo, config.StoreDriver)
	req.Equal([]string{"https://a.example", "https://b.example"}, config.Origins())
}

func TestLoad_Rejects_Incomplete_Driver_Settings(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		target error
	}{
		{"mysql without dsn", DriverMySQL, nil},
		{"unknown driver", "cassandra", errors.ErrUnknownDriver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			t.Setenv("BADGER_FILEPATH", t.TempDir())
			t.Setenv("JWT_SECRET", "secret")
			t.Setenv("STORE_DRIVER", tt.driver)
			t.Setenv("MYSQL_DSN", "")

			_, err := Load()

			req.Error(err)
			if tt.target != nil {
				req.ErrorIs(err, tt.target)
			}
		})
	}
}
