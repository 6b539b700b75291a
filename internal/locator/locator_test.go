package locator

import (
	"testing"

	"sysync/internal/config"
)

func testApps() []config.AppConfig {
	return []config.AppConfig{
		{
			Name:     "editor",
			Path:     "/home/user/.config/editor",
			Category: "Development",
			Type:     "Application",
			Settings: []config.SettingConfig{
				{Name: "main config", Path: "/home/user/.config/editor/settings.json", Type: "config"},
				{Name: "user data", Path: "/home/user/.local/share/editor", Type: "data"},
			},
		},
		{Name: "terminal", Path: "/home/user/.config/term", Category: "Development", Type: "Application"},
	}
}

func TestStaticLocator_Applications(t *testing.T) {
	t.Parallel()

	l := NewStaticLocator(testApps())
	apps := l.Applications()
	if len(apps) != 2 {
		t.Fatalf("got %d apps, want 2", len(apps))
	}
	if apps[0].Name != "editor" || len(apps[0].Settings) != 2 {
		t.Errorf("apps[0] = %+v", apps[0])
	}

	// The returned slice is a copy.
	apps[0].Name = "mutated"
	if l.Applications()[0].Name != "editor" {
		t.Error("caller mutation leaked into the locator")
	}
}

func TestStaticLocator_Find(t *testing.T) {
	t.Parallel()

	l := NewStaticLocator(testApps())

	app, err := l.Find("terminal")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if app.Name != "terminal" {
		t.Errorf("Name = %q", app.Name)
	}

	if _, err := l.Find("unknown"); err == nil {
		t.Error("Find() of unknown app should return error")
	}
}

func TestStaticLocator_Empty(t *testing.T) {
	t.Parallel()

	l := NewStaticLocator(nil)
	if got := l.Applications(); len(got) != 0 {
		t.Errorf("got %d apps, want 0", len(got))
	}
}
