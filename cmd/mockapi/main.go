package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/faciam-dev/formportal/internal/logger"
	"github.com/faciam-dev/formportal/internal/mockapi"
	"github.com/faciam-dev/formportal/pkg/formschema"
	"github.com/faciam-dev/formportal/pkg/util"
)

var (
	names   = []string{"Ada Lovelace", "Alan Turing", "Grace Hopper", "Edsger Dijkstra", "Barbara Liskov", "Donald Knuth"}
	genders = []string{"Female", "Male", "Female", "Male", "Female", "Male"}
	cities  = []string{"Toronto", "Boston", "Austin", "Vancouver", "Seattle", "Montreal"}
	kinds   = []string{"health", "home", "car", "life"}
)

func main() {
	addr := flag.String("addr", util.GetEnv("MOCKAPI_ADDR", ":9090"), "listen address")
	seed := flag.Int("seed", 0, "number of demo applications to create at start")
	omitTotal := flag.Bool("omit-total", false, "leave total out of listing responses")
	flag.Parse()

	logger.Set(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	srv, err := mockapi.New()
	if err != nil {
		logger.L.Error("load schemas", "err", err)
		os.Exit(1)
	}
	srv.OmitTotal = *omitTotal
	srv.Seed(demo(*seed)...)

	logger.L.Info("mock backend listening", "addr", *addr, "seeded", *seed)
	hs := &http.Server{
		Addr:         *addr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := hs.ListenAndServe(); err != nil {
		logger.L.Error("server error", "err", err)
		os.Exit(1)
	}
}

func demo(n int) []formschema.Application {
	out := make([]formschema.Application, 0, n)
	start := time.Now().Add(-time.Duration(n) * time.Hour)
	for i := 0; i < n; i++ {
		j := i % len(names)
		created := start.Add(time.Duration(i) * time.Hour)
		out = append(out, formschema.Application{
			ID:        uuid.NewString(),
			Type:      kinds[i%len(kinds)],
			Status:    "submitted",
			CreatedAt: created,
			UpdatedAt: created,
			Data: formschema.Values{
				"fullName": fmt.Sprintf("%s %d", names[j], i+1),
				"age":      float64(25 + (i*7)%50),
				"gender":   genders[j],
				"city":     cities[j],
			},
		})
	}
	return out
}
