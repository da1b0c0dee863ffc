package rest

import (
	"net/http"
	"slices"

	"github.com/bnema/cuedesk/internal/domain"
)

type param struct {
	name        string
	kind        string
	description string
	required    bool
}

type route struct {
	name        string
	description string
	method      string
	// path may hold {placeholders}; they are filled from params and
	// removed from the request body.
	path   string
	params []param
}

var (
	idParam       = param{name: "id", kind: "string", description: "Id or name of the entity.", required: true}
	universeParam = param{name: "universe", kind: "integer", description: "DMX universe, defaults to 1."}
)

var routes = []route{
	{name: "list_scenes", description: "List stored scenes.", method: http.MethodGet, path: "/api/scenes"},
	{name: "get_scene", description: "Show one scene.", method: http.MethodGet, path: "/api/scenes/{id}", params: []param{idParam}},
	{name: "create_scene", description: "Store a scene from channel values.", method: http.MethodPost, path: "/api/scenes", params: []param{
		{name: "name", kind: "string", description: "Scene name.", required: true},
		{name: "channels", kind: "object", description: "Channel number to value (0-255)."},
		{name: "universe", kind: "integer", description: "DMX universe, defaults to 1."},
	}},
	{name: "update_scene", description: "Change a stored scene.", method: http.MethodPut, path: "/api/scenes/{id}", params: []param{
		idParam,
		{name: "name", kind: "string", description: "New scene name."},
		{name: "channels", kind: "object", description: "Channel number to value (0-255)."},
	}},
	{name: "delete_scene", description: "Delete a scene permanently.", method: http.MethodDelete, path: "/api/scenes/{id}", params: []param{idParam}},
	{name: "play_scene", description: "Output a scene.", method: http.MethodPost, path: "/api/scenes/{id}/play", params: []param{
		idParam,
		{name: "fade_ms", kind: "integer", description: "Crossfade time in milliseconds."},
	}},

	{name: "list_chases", description: "List stored chases.", method: http.MethodGet, path: "/api/chases"},
	{name: "get_chase", description: "Show one chase.", method: http.MethodGet, path: "/api/chases/{id}", params: []param{idParam}},
	{name: "create_chase", description: "Store a chase (sequence of steps).", method: http.MethodPost, path: "/api/chases", params: []param{
		{name: "name", kind: "string", description: "Chase name.", required: true},
		{name: "steps", kind: "array", description: "Steps, each with scene_id or channels and duration_ms."},
		{name: "bpm", kind: "number", description: "Tempo in beats per minute."},
		{name: "loop", kind: "boolean", description: "Repeat when the last step ends."},
	}},
	{name: "update_chase", description: "Change a stored chase.", method: http.MethodPut, path: "/api/chases/{id}", params: []param{
		idParam,
		{name: "steps", kind: "array", description: "Replacement steps."},
		{name: "bpm", kind: "number", description: "Tempo in beats per minute."},
		{name: "loop", kind: "boolean", description: "Repeat when the last step ends."},
	}},
	{name: "delete_chase", description: "Delete a chase permanently.", method: http.MethodDelete, path: "/api/chases/{id}", params: []param{idParam}},
	{name: "play_chase", description: "Start a chase.", method: http.MethodPost, path: "/api/chases/{id}/play", params: []param{
		idParam,
		{name: "bpm", kind: "number", description: "Override tempo in beats per minute."},
	}},

	{name: "get_playback_status", description: "Show what is currently playing.", method: http.MethodGet, path: "/api/playback/status"},
	{name: "stop_playback", description: "Stop the running scene or chase.", method: http.MethodPost, path: "/api/playback/stop"},
	{name: "blackout", description: "Set every channel to zero.", method: http.MethodPost, path: "/api/blackout"},
	{name: "strobe", description: "Flash all fixtures at a rate.", method: http.MethodPost, path: "/api/strobe", params: []param{
		{name: "rate_hz", kind: "number", description: "Flashes per second.", required: true},
		{name: "duration_ms", kind: "integer", description: "How long to strobe."},
	}},

	{name: "list_fixtures", description: "List patched fixtures.", method: http.MethodGet, path: "/api/fixtures"},
	{name: "delete_fixture", description: "Remove a fixture from the patch.", method: http.MethodDelete, path: "/api/fixtures/{id}", params: []param{idParam}},
	{name: "list_nodes", description: "List output nodes and their connectivity.", method: http.MethodGet, path: "/api/nodes"},

	{name: "get_channels", description: "Read channel values of a universe.", method: http.MethodGet, path: "/api/universes/{universe}/channels", params: []param{universeParam}},
	{name: "set_channel", description: "Set one channel.", method: http.MethodPut, path: "/api/universes/{universe}/channels/{channel}", params: []param{
		{name: "channel", kind: "integer", description: "Channel number (1-512).", required: true},
		{name: "value", kind: "integer", description: "Value (0-255).", required: true},
		universeParam,
	}},
	{name: "set_channels", description: "Set several channels at once.", method: http.MethodPut, path: "/api/universes/{universe}/channels", params: []param{
		{name: "values", kind: "object", description: "Channel number to value (0-255).", required: true},
		universeParam,
	}},
}

// pathDefaults fill placeholders the caller may omit.
var pathDefaults = map[string]string{"universe": "1"}

func findRoute(name string) (route, bool) {
	idx := slices.IndexFunc(routes, func(r route) bool { return r.name == name })
	if idx < 0 {
		return route{}, false
	}
	return routes[idx], true
}

func (r route) spec() domain.ActionSpec {
	properties := make(map[string]any, len(r.params))
	required := make([]string, 0, len(r.params))
	for _, p := range r.params {
		properties[p.name] = map[string]any{"type": p.kind, "description": p.description}
		if p.required {
			required = append(required, p.name)
		}
	}
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return domain.ActionSpec{Name: r.name, Description: r.description, ParamSchema: schema}
}
