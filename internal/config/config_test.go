package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_ValidateForServer(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid with app id",
			config: Config{
				Provider: ProviderConfig{AppID: 1, WebhookSecret: "s"},
				Storage:  StorageConfig{Bucket: "docs"},
			},
			wantErr: false,
		},
		{
			name: "valid with token",
			config: Config{
				Provider: ProviderConfig{Token: "ghp_x", WebhookSecret: "s"},
				Storage:  StorageConfig{Bucket: "docs"},
			},
			wantErr: false,
		},
		{
			name: "missing provider auth",
			config: Config{
				Provider: ProviderConfig{WebhookSecret: "s"},
				Storage:  StorageConfig{Bucket: "docs"},
			},
			wantErr: true,
		},
		{
			name: "missing webhook secret",
			config: Config{
				Provider: ProviderConfig{AppID: 1},
				Storage:  StorageConfig{Bucket: "docs"},
			},
			wantErr: true,
		},
		{
			name: "missing bucket",
			config: Config{
				Provider: ProviderConfig{AppID: 1, WebhookSecret: "s"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.ValidateForServer()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateForCLI(t *testing.T) {
	assert.NoError(t, (&Config{}).ValidateForCLI())
	assert.NoError(t, (&Config{Storage: StorageConfig{Bucket: "docs"}}).ValidateForCLI())
}

func TestDBConfig_GetDSN(t *testing.T) {
	db := DBConfig{
		Host: "localhost", Port: 5432, Username: "u", Password: "p",
		Database: "d", SSLMode: "disable",
	}
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=d sslmode=disable", db.GetDSN())
}
