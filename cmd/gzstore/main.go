// Command gzstore runs the gzstore HTTP server.
//
// Usage:
//
//	gzstore -config /etc/gzstore/gzstore.toml
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	raven "github.com/getsentry/raven-go"

	"github.com/ndlib/gzstore/catalog"
	"github.com/ndlib/gzstore/server"
)

func main() {
	var (
		configFile  = flag.String("config", "gzstore.toml", "path to the configuration file")
		showVersion = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("gzstore", server.Version)
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalln("Problem reading configuration:", err)
	}
	if cfg.SentryDSN != "" {
		raven.SetDSN(cfg.SentryDSN)
		raven.SetRelease(server.Version)
	}

	idx, err := cfg.openIndex()
	if err != nil {
		log.Fatalln("Problem opening index:", err)
	}
	cat := catalog.New(idx)
	collections, err := cfg.collections()
	if err != nil {
		log.Fatalln(err)
	}
	for _, c := range collections {
		log.Printf("Collection %s: storage %s, target %s", c.Name, c.Storage.Name(), c.Target.Name())
		if err := cat.AddCollection(c); err != nil {
			log.Fatalln(err)
		}
	}

	var validator server.TokenDecoder
	if cfg.Tokens != "" {
		validator, err = server.NewListDecoderFile(cfg.Tokens)
		if err != nil {
			log.Fatalln("Problem reading tokens:", err)
		}
	}

	s := &server.RESTServer{
		PortNumber:           cfg.Port,
		PProfPort:            cfg.PProfPort,
		Prefix:               cfg.Prefix,
		Catalog:              cat,
		Validator:            validator,
		TempDir:              cfg.TempDir,
		MaxConcurrentImports: cfg.MaxImports,
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("Received signal, stopping")
		if err := s.Stop(); err != nil {
			log.Println(err)
		}
	}()

	if err := s.Run(); err != nil {
		log.Fatalln(err)
	}
}
