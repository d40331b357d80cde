// Command ngalignd serves the aligned-tile / cube / pyramid packaging
// API (spec §6): alignedslice, ngmeta, ngshard over HTTP, backed by a
// single shared object-store client for the life of the process.
package main

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/ngalign/ngalign/internal/config"
	"github.com/ngalign/ngalign/internal/httpapi"
	"github.com/ngalign/ngalign/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx := context.Background()
	client, err := store.NewClient(ctx)
	if err != nil {
		log.Fatalln("opening storage client:", err)
	}
	defer client.Close()

	cfg := config.FromEnv()
	srv := httpapi.NewServer(client)

	addr := ":" + strconv.Itoa(cfg.Port)
	log.Println("listening on", addr)
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		log.Fatalln("serving:", err)
	}
}
