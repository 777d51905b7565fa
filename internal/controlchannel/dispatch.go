package controlchannel

import (
	"context"
	"fmt"
	"time"

	"github.com/company/betterteams/internal/addon"
	"github.com/company/betterteams/internal/lifecycle"
)

// handle turns one raw client message into the reply for its sender.
func (s *Server) handle(ctx context.Context, raw []byte) (reply Message) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("request handler panicked", "panic", r)
			reply = errorMessage(fmt.Sprintf("Internal error: %v", r))
		}
	}()

	req, err := DecodeRequest(raw)
	if err != nil {
		s.log.Debug("rejected message", "err", err)
		return errorMessage(err.Error())
	}
	s.log.Debug("request", "verb", req.Verb())

	return s.dispatch(ctx, req)
}

func (s *Server) dispatch(ctx context.Context, req Request) Message {
	switch r := req.(type) {
	case PingRequest:
		return Message{Action: ActionPong, Data: PongData{Timestamp: time.Now().Format(time.RFC3339)}}

	case ListAvailableRequest:
		records := s.backend.ListAvailable(ctx, r.Kind)
		if r.Kind == addon.Theme {
			return Message{Action: ActionAvailableThemes, Data: ThemesData{Themes: records}}
		}
		return Message{Action: ActionAvailablePlugins, Data: PluginsData{Plugins: records}}

	case ListInstalledRequest:
		records := s.backend.ListInstalled(r.Kind)
		if r.Kind == addon.Theme {
			data := ThemesData{Themes: records}
			if active, ok := s.backend.ActiveTheme(); ok {
				data.ActiveThemeID = active.ID
			}
			return Message{Action: ActionInstalledThemes, Data: data}
		}
		return Message{Action: ActionInstalledPlugins, Data: PluginsData{Plugins: records}}

	case InstallRequest:
		err := s.backend.Install(ctx, r.Kind, r.ID)
		return resultMessage(kindAction(r.Kind, ActionPluginInstalled, ActionThemeInstalled), r.ID, err)

	case UninstallRequest:
		err := s.backend.Uninstall(ctx, r.Kind, r.ID)
		return resultMessage(kindAction(r.Kind, ActionPluginUninstalled, ActionThemeUninstalled), r.ID, err)

	case PluginActivationRequest:
		var err error
		action := ActionPluginDeactivated
		if r.Active {
			action = ActionPluginActivated
			err = s.backend.ActivatePlugin(ctx, r.ID)
		} else {
			err = s.backend.DeactivatePlugin(ctx, r.ID)
		}
		if r.CamelCase {
			action = camelAction(action)
		}
		return resultMessage(action, r.ID, err)

	case ActivateThemeRequest:
		if r.ID == "" {
			return s.dispatch(ctx, DeactivateThemeRequest{})
		}
		rec, err := s.backend.SetActiveTheme(ctx, r.ID)
		if err != nil {
			return Message{Action: ActionThemeActivated, Data: ThemeData{ThemeID: r.ID, Error: err.Error()}}
		}
		return Message{Action: ActionThemeActivated, Data: ThemeData{Success: true, ThemeID: rec.ID, ThemeName: rec.Name}}

	case DeactivateThemeRequest:
		err := s.backend.DeactivateTheme(ctx)
		return resultMessage(ActionThemeDeactivated, "", err)

	case ActiveThemeRequest:
		rec, _ := s.backend.ActiveTheme()
		return Message{Action: ActionActiveTheme, Data: ThemeData{Success: rec.ID != "", ThemeID: rec.ID, ThemeName: rec.Name}}

	case ClipboardRequest:
		msg, err := s.copyToClipboard(ctx, r)
		if err != nil {
			s.log.Warn("clipboard request failed", "type", r.Type, "err", err)
			return Message{Action: ActionClipboardUpdated, Data: ClipboardData{Message: err.Error()}}
		}
		return Message{Action: ActionClipboardUpdated, Data: ClipboardData{Success: true, Message: msg}}
	}

	return errorMessage(fmt.Sprintf("Unknown action: %s", req.Verb()))
}

func resultMessage(action, id string, err error) Message {
	if err != nil {
		return Message{Action: action, Data: ResultData{ID: id, Error: err.Error()}}
	}
	return Message{Action: action, Data: ResultData{Success: true, ID: id}}
}

func kindAction(kind addon.Kind, plugin, theme string) string {
	if kind == addon.Theme {
		return theme
	}
	return plugin
}

func camelAction(action string) string {
	switch action {
	case ActionPluginActivated:
		return "pluginActivated"
	case ActionPluginDeactivated:
		return "pluginDeactivated"
	}
	return action
}

// eventMessage maps a lifecycle event to the message other clients see.
func eventMessage(ev lifecycle.Event) (Message, bool) {
	data := ResultData{Success: true, ID: ev.ID, Name: ev.Name}
	switch ev.Action {
	case lifecycle.Installed:
		return Message{Action: kindAction(ev.Kind, ActionPluginInstalled, ActionThemeInstalled), Data: data}, true
	case lifecycle.Uninstalled:
		return Message{Action: kindAction(ev.Kind, ActionPluginUninstalled, ActionThemeUninstalled), Data: data}, true
	case lifecycle.Activated:
		return Message{Action: ActionPluginActivated, Data: data}, true
	case lifecycle.Deactivated:
		return Message{Action: ActionPluginDeactivated, Data: data}, true
	case lifecycle.ThemeActivated:
		return Message{Action: ActionThemeActivated, Data: ThemeData{Success: true, ThemeID: ev.ID, ThemeName: ev.Name}}, true
	case lifecycle.ThemeDeactivated:
		return Message{Action: ActionThemeDeactivated, Data: ResultData{Success: true, ID: ev.ID}}, true
	}
	return Message{}, false
}
