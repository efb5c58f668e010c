package server

import (
	"strings"

	"go.uber.org/zap"

	"github.com/faciam-dev/formportal/pkg/util"
)

// Config holds the portal server settings.
type Config struct {
	// AllowedOrigins lists the origins allowed to call the JSON API.
	AllowedOrigins []string
	// Logger receives logs of the dynamic option resolver. Nil discards them.
	Logger *zap.SugaredLogger
}

// AllowedOrigins returns the list of origins allowed for CORS.
func AllowedOrigins() []string {
	return splitOrigins(util.GetEnv("ALLOWED_ORIGINS", "http://localhost:8080"))
}

func splitOrigins(allowed string) []string {
	var origins []string
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
