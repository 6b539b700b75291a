// Package locator resolves application names to their settings descriptors.
package locator

import (
	"fmt"

	"sysync/internal/config"
	"sysync/internal/model"
)

// Locator answers which applications are known and where their settings live.
type Locator interface {
	// Applications lists every known application.
	Applications() []model.AppInfo

	// Find returns the application with the given name, or an error when it
	// is unknown.
	Find(name string) (*model.AppInfo, error)
}

// StaticLocator serves applications declared in the configuration file.
type StaticLocator struct {
	apps []model.AppInfo
}

var _ Locator = (*StaticLocator)(nil)

// NewStaticLocator builds a locator from the configured application list.
func NewStaticLocator(apps []config.AppConfig) *StaticLocator {
	out := make([]model.AppInfo, 0, len(apps))
	for _, a := range apps {
		settings := make([]model.Setting, 0, len(a.Settings))
		for _, s := range a.Settings {
			settings = append(settings, model.Setting{
				Name:        s.Name,
				Path:        s.Path,
				Description: s.Description,
				Type:        s.Type,
			})
		}
		out = append(out, model.AppInfo{
			Name:     a.Name,
			Path:     a.Path,
			Category: a.Category,
			Type:     a.Type,
			Settings: settings,
		})
	}
	return &StaticLocator{apps: out}
}

func (l *StaticLocator) Applications() []model.AppInfo {
	out := make([]model.AppInfo, len(l.apps))
	copy(out, l.apps)
	return out
}

func (l *StaticLocator) Find(name string) (*model.AppInfo, error) {
	for i := range l.apps {
		if l.apps[i].Name == name {
			app := l.apps[i]
			return &app, nil
		}
	}
	return nil, fmt.Errorf("unknown application: %s", name)
}
