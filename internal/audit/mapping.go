package audit

import "strings"

// ActionResource holds action and resource derived from an HTTP method and chi route pattern.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseRoute returns action and resource for an HTTP request (e.g. POST /auth/login).
// The resource is the first path segment of the route pattern with parameters
// stripped; the action is the second segment when present (POST /auth/login ->
// action "login", resource "auth"), otherwise a verb derived from the method.
func ParseRoute(method, routePattern string) ActionResource {
	segments := splitRoute(routePattern)
	if len(segments) == 0 {
		return ActionResource{Action: methodToAction(method), Resource: "root"}
	}
	resource := segments[0]
	if len(segments) > 1 && !strings.HasPrefix(segments[1], "{") {
		return ActionResource{Action: segments[1], Resource: resource}
	}
	return ActionResource{Action: methodToAction(method), Resource: resource}
}

func splitRoute(routePattern string) []string {
	var out []string
	for _, s := range strings.Split(routePattern, "/") {
		s = strings.TrimSpace(s)
		if s == "" || s == "*" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func methodToAction(method string) string {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return "get"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
