package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mit-pdos/go-mfs/config"
	"github.com/mit-pdos/go-mfs/disk"
	"github.com/mit-pdos/go-mfs/fs"
	"github.com/mit-pdos/go-mfs/server"
	"github.com/mit-pdos/go-mfs/udp"
	"github.com/mit-pdos/go-mfs/util"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: mfs-server [-config file] [-debug n] [port image]\n")
	flag.PrintDefaults()
}

func main() {
	var configPath string
	var debug int
	flag.StringVar(&configPath, "config", "", "Path to config json file")
	flag.IntVar(&debug, "debug", -1, "Debug level (overrides config)")
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("FATAL: load config %q: %v", configPath, err)
		os.Exit(1)
	}
	switch flag.NArg() {
	case 0:
	case 2:
		port, err := strconv.Atoi(flag.Arg(0))
		if err != nil {
			log.Printf("FATAL: bad port %q", flag.Arg(0))
			os.Exit(1)
		}
		cfg.Port = port
		cfg.Image = flag.Arg(1)
	default:
		usage()
		os.Exit(2)
	}
	if debug >= 0 {
		cfg.Debug = uint64(debug)
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("FATAL: invalid config: %v", err)
		os.Exit(1)
	}
	if cfg.Image == "" {
		log.Printf("FATAL: no image given")
		os.Exit(1)
	}
	util.Debug = cfg.Debug

	d, err := disk.OpenFileDisk(cfg.Image)
	if err != nil {
		log.Printf("FATAL: open image %q: %v", cfg.Image, err)
		os.Exit(1)
	}
	fsys, err := fs.Open(d)
	if err != nil {
		d.Close()
		log.Printf("FATAL: %s: %v", cfg.Image, err)
		os.Exit(1)
	}
	conn, err := udp.Open(cfg.Port)
	if err != nil {
		fsys.Shutdown()
		log.Printf("FATAL: %v", err)
		os.Exit(1)
	}
	srv := server.New(fsys, conn)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	interrupted := make(chan os.Signal, 1)
	go func() {
		s := <-sigs
		interrupted <- s
		srv.Close()
	}()

	log.Printf("mfs-server: serving %s on port %d", cfg.Image, cfg.Port)
	err = srv.Serve()
	if err == nil {
		// shutdown request: the file system is already flushed and closed
		return
	}
	if ferr := fsys.Shutdown(); ferr != nil {
		log.Printf("flush %s: %v", cfg.Image, ferr)
	}
	select {
	case s := <-interrupted:
		log.Printf("mfs-server: %v, image flushed", s)
		os.Exit(130)
	default:
	}
	if !errors.Is(err, udp.ErrClosed) {
		log.Printf("FATAL: %v", err)
	}
	os.Exit(1)
}
