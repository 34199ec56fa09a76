package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/irfansharif/blog/pkg/docstore"
)

func TestLoadCreatesDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	dir := filepath.Join(home, ".blog")
	want := Config{
		Admins:          []string{},
		ReadCollection:  "articles",
		WriteCollection: "artifacts/{uid}/public/data/articles",
		StatusTimeout:   3 * time.Second,
		DataDir:         filepath.Join(dir, "data"),
		LogFile:         filepath.Join(dir, "blog.log"),
		LogLevel:        "info",
	}
	if diff := cmp.Diff(want, cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, "blog.toml")); err != nil {
		t.Errorf("expected default config file: %v", err)
	}
}

func TestLoadExisting(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		want    func(home string) Config
		wantErr bool
	}{
		{
			name: "overrides and home expansion",
			file: `
admins = ["root-uid"]
read_collection = "artifacts/shared/public/data/articles"
write_collection = "artifacts/shared/public/data/articles"
status_timeout = "5s"
data_dir = "~/blogdata"
log_level = "debug"
`,
			want: func(home string) Config {
				return Config{
					Admins:          []string{"root-uid"},
					ReadCollection:  "artifacts/shared/public/data/articles",
					WriteCollection: "artifacts/shared/public/data/articles",
					StatusTimeout:   5 * time.Second,
					DataDir:         filepath.Join(home, "blogdata"),
					LogFile:         filepath.Join(home, ".blog", "blog.log"),
					LogLevel:        "debug",
				}
			},
		},
		{
			name:    "document path is not a collection",
			file:    `read_collection = "articles/one"`,
			wantErr: true,
		},
		{
			name:    "bad toml",
			file:    `admins = [`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			t.Setenv("HOME", home)
			dir := filepath.Join(home, ".blog")
			if err := os.MkdirAll(dir, 0755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, "blog.toml"), []byte(tt.file), 0644); err != nil {
				t.Fatal(err)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want(home), got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    Env
		wantErr bool
	}{
		{
			name: "nothing set",
			env:  map[string]string{},
			want: Env{},
		},
		{
			name: "service and token",
			env: map[string]string{
				EnvServiceConfig:    `{"apiKey":"k","projectId":"p","backend":"postgres","dsn":"postgres://x"}`,
				EnvInitialAuthToken: "tok",
			},
			want: Env{
				Service:          Service{APIKey: "k", ProjectID: "p", Backend: "postgres", DSN: "postgres://x"},
				InitialAuthToken: "tok",
			},
		},
		{
			name: "missing api key is not an error",
			env:  map[string]string{EnvServiceConfig: `{"projectId":"p"}`},
			want: Env{Service: Service{ProjectID: "p"}},
		},
		{
			name:    "invalid json",
			env:     map[string]string{EnvServiceConfig: `{"apiKey":`},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Run from an empty directory so no stray .env is picked up.
			t.Chdir(t.TempDir())
			for _, key := range []string{EnvServiceConfig, EnvInitialAuthToken} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := LoadEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("LoadEnv() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadEnvDotenv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(EnvServiceConfig, "")
	t.Setenv(EnvInitialAuthToken, "")
	// godotenv does not override variables that are already set, even to
	// the empty string, so unset them for the duration of the test.
	os.Unsetenv(EnvServiceConfig)
	os.Unsetenv(EnvInitialAuthToken)

	contents := EnvInitialAuthToken + "=from-dotenv\n" + EnvServiceConfig + `='{"apiKey":"dot"}'` + "\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadEnv()
	if err != nil {
		t.Fatal(err)
	}
	want := Env{Service: Service{APIKey: "dot"}, InitialAuthToken: "from-dotenv"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadEnv() mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceOptions(t *testing.T) {
	tests := []struct {
		name    string
		svc     Service
		want    docstore.Options
		wantErr bool
	}{
		{
			name: "sqlite defaults",
			svc:  Service{APIKey: "k"},
			want: docstore.Options{APIKey: "k", ProjectID: "default", DSN: "/data/blog.db"},
		},
		{
			name: "postgres keeps dsn",
			svc:  Service{APIKey: "k", ProjectID: "p", Backend: BackendPostgres, DSN: "postgres://db", PollInterval: "500ms"},
			want: docstore.Options{APIKey: "k", ProjectID: "p", DSN: "postgres://db", PollInterval: 500 * time.Millisecond},
		},
		{
			name:    "bad poll interval",
			svc:     Service{APIKey: "k", PollInterval: "often"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.svc.Options("/data")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Options() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWritePath(t *testing.T) {
	if got := WritePath(DefaultWriteCollection, "u1"); got != "artifacts/u1/public/data/articles" {
		t.Errorf("WritePath() = %q", got)
	}
}
