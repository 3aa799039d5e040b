package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goqr "github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/oprema/internal/api"
	"github.com/erazemk/oprema/internal/auth"
	"github.com/erazemk/oprema/internal/client"
	"github.com/erazemk/oprema/internal/config"
	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/inventory"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/scanner"
	"github.com/erazemk/oprema/internal/store"
)

const testSecret = "cli-test-secret"

type cliTestEnv struct {
	serverURL  string
	configPath string
	item       *model.Item
	user       *model.User
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("NO_COLOR", "1")
	for _, k := range []string{config.EnvConfig, config.EnvServer, config.EnvToken, config.EnvSessKey, config.EnvCameraDir, config.EnvMobile, envPassword} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	ctx := context.Background()
	database := db.NewTestDB(t)
	server := httptest.NewServer(api.NewRouter(database, testSecret, nil))
	t.Cleanup(server.Close)

	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	user, err := store.CreateUser(ctx, database, "mgr", "Mia Manager", string(hash), model.RoleManager)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	library, _ := store.CreateHolder(ctx, database, "Library", model.HolderTypeLocation)
	product, _ := store.CreateProduct(ctx, database, "Chromebook", "", "", "012345678905")
	item, err := inventory.NewManager(database, nil).Intake(ctx, inventory.IntakeRequest{ProductID: product.ID, LocationID: library.ID}, &user.ID)
	if err != nil {
		t.Fatalf("Intake: %v", err)
	}

	token, sesskey, err := auth.GenerateToken(testSecret, user.ID, user.Username, user.Role)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	configPath := filepath.Join(t.TempDir(), "config.toml")
	cfg := config.Default()
	cfg.Station.ServerURL = server.URL
	cfg.Station.Token = token
	cfg.Station.SessKey = sesskey
	if err := config.Save(&cfg, configPath); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	return &cliTestEnv{serverURL: server.URL, configPath: configPath, item: item, user: user}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	if got := client.CodeOf(err); got != code {
		t.Fatalf("expected error code %q, got %v", code, err)
	}
}

func TestLoginSavesSession(t *testing.T) {
	env := setupCLITestEnv(t)
	fresh := filepath.Join(t.TempDir(), "station.toml")

	if _, _, err := runCLI(t, fresh, "locations"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("expected not logged in error, got %v", err)
	}

	out, _, err := runCLI(t, fresh, "--server", env.serverURL, "login", "-u", "mgr", "-p", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	requireContains(t, out, "Logged in as Mia Manager (manager)")

	out, _, err = runCLI(t, fresh, "locations")
	if err != nil {
		t.Fatalf("locations after login: %v", err)
	}
	requireContains(t, out, "Library")

	if _, _, err := runCLI(t, fresh, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := runCLI(t, fresh, "locations"); err == nil {
		t.Fatal("expected locations to fail after logout")
	}
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	env := setupCLITestEnv(t)
	fresh := filepath.Join(t.TempDir(), "station.toml")

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader("hunter22\n"))
	cmd.SetArgs([]string{"--config", fresh, "--server", env.serverURL, "login", "-u", "mgr"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("login: %v", err)
	}
	requireContains(t, stderr.String(), "Password:")
}

func TestLookupPanel(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "lookup", env.item.UUID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	requireContains(t, out, "Chromebook")
	requireContains(t, out, model.ItemStatusAvailable)
	requireContains(t, out, "waiting to be printed")
	requireContains(t, out, model.TxIntake)

	out, _, err = runCLI(t, env.configPath, "lookup", "012345678905")
	if err != nil {
		t.Fatalf("lookup upc: %v", err)
	}
	requireContains(t, out, "UPC 012345678905: Chromebook, 1 item(s)")
}

func TestLookupJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "--json", "lookup", env.item.UUID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	var res inventory.ScanResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if res.Detail == nil || res.Detail.Item.UUID != env.item.UUID {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestLookupRejectsUnknownCode(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "lookup", "hello world")
	requireCode(t, err, inventory.CodeInvalidBarcodeType)
}

func TestAssignAndUnassign(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "assign", env.item.UUID, "mgr")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	requireContains(t, out, model.ItemStatusCheckedOut)
	requireContains(t, out, "Mia Manager")

	out, _, err = runCLI(t, env.configPath, "transfer", env.item.UUID, "library")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	requireContains(t, out, model.ItemStatusAvailable)

	if _, _, err := runCLI(t, env.configPath, "assign", env.item.UUID, fmt.Sprint(env.user.ID)); err != nil {
		t.Fatalf("assign by id: %v", err)
	}
	out, _, err = runCLI(t, env.configPath, "unassign", env.item.UUID)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	requireContains(t, out, "Library")

	out, _, err = runCLI(t, env.configPath, "notes", env.item.UUID, "missing", "charger")
	if err != nil {
		t.Fatalf("notes: %v", err)
	}
	requireContains(t, out, "missing charger")

	if _, _, err := runCLI(t, env.configPath, "assign", env.item.UUID, "nobody"); err == nil {
		t.Error("expected unknown user to fail")
	}
}

func TestRemoveFlow(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, env.configPath, "remove", env.item.UUID); err == nil {
		t.Fatal("expected missing reason to fail")
	}

	_, stderr, err := runCLI(t, env.configPath, "remove", env.item.UUID, "--reason", "damaged")
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected warnings to block removal, got %v", err)
	}
	requireContains(t, stderr, "waiting to be printed")

	out, _, err := runCLI(t, env.configPath, "remove", env.item.UUID, "--reason", "damaged", "--force")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	requireContains(t, out, "Removed "+env.item.UUID)

	_, _, err = runCLI(t, env.configPath, "remove", env.item.UUID, "--reason", "lost", "--force")
	requireCode(t, err, inventory.CodeAlreadyRemoved)
}

func TestRemoveUPC(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "remove-upc", "012345678905", "--reason", "lost")
	if err != nil {
		t.Fatalf("remove-upc: %v", err)
	}
	requireContains(t, out, "Removed "+env.item.UUID)

	// Removed items no longer carry the UPC.
	_, _, err = runCLI(t, env.configPath, "remove-upc", "012345678905", "--reason", "lost")
	requireCode(t, err, inventory.CodeItemNotFound)
}

func TestUsersTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "users", "mia")
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	requireContains(t, out, "Mia Manager")
	requireContains(t, out, fmt.Sprint(env.user.ID))
}

func TestUsersInteractive(t *testing.T) {
	env := setupCLITestEnv(t)

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader("m\nmi\n\nmia\n"))
	cmd.SetArgs([]string{"--config", env.configPath, "users", "--interactive"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("users -i: %v", err)
	}

	out := stdout.String()
	requireContains(t, out, `Results for "mia"`)
	requireContains(t, out, "Mia Manager")
	if n := strings.Count(out, "Results for"); n != 1 {
		t.Errorf("expected one search for the burst, got %d:\n%s", n, out)
	}

	if _, _, err := runCLI(t, env.configPath, "users", "--interactive", "mia"); err == nil {
		t.Error("expected an error for a query argument with --interactive")
	}
}

func writeQR(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := goqr.WriteFile(text, goqr.Medium, 400, path); err != nil {
		t.Fatalf("writing QR: %v", err)
	}
	return path
}

func TestScanFrame(t *testing.T) {
	env := setupCLITestEnv(t)
	frame := writeQR(t, "https://kit.example.org/equipment/"+env.item.UUID)

	out, _, err := runCLI(t, env.configPath, "scan", "--frame", frame, "-n", "1")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, env.item.UUID)
	requireContains(t, out, "Chromebook")
}

func TestScanMirroredPreview(t *testing.T) {
	env := setupCLITestEnv(t)
	frame := writeQR(t, env.item.UUID)
	preview := filepath.Join(t.TempDir(), "preview.jpg")

	out, _, err := runCLI(t, env.configPath, "scan", "--frame", frame, "-n", "1", "--mirror", "--preview", preview)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, env.item.UUID)

	data, err := os.ReadFile(preview)
	if err != nil {
		t.Fatalf("reading preview: %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("preview is not a JPEG")
	}
}

func TestScanAndRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	frame := writeQR(t, env.item.UUID)

	out, _, err := runCLI(t, env.configPath, "scan", "--frame", frame, "-n", "1", "--remove", "retired")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "Removed 1 item(s) this session")
}

func TestScanWithoutCamera(t *testing.T) {
	env := setupCLITestEnv(t)

	_, stderr, err := runCLI(t, env.configPath, "scan", "-n", "1")
	var ce *scanner.CameraError
	if !errors.As(err, &ce) || !strings.Contains(err.Error(), "camera unavailable") {
		t.Fatalf("expected camera error, got %v", err)
	}
	requireContains(t, stderr, "No camera source is configured")
}

func TestRenderError(t *testing.T) {
	err := &client.ActionError{Code: inventory.CodeItemCheckedOut, Message: "item is checked out"}
	if got := renderError(err, false); got != "error [item_checked_out]: item is checked out" {
		t.Errorf("unexpected banner %q", got)
	}
	if got := renderError(errors.New("boom"), false); got != "error: boom" {
		t.Errorf("unexpected banner %q", got)
	}
	if got := renderError(errors.New("boom"), true); !strings.HasPrefix(got, ansiRed) {
		t.Errorf("expected coloured banner, got %q", got)
	}
}
