package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/config"
	"github.com/mit-pdos/go-mfs/disk"
	"github.com/mit-pdos/go-mfs/fs"
	"github.com/mit-pdos/go-mfs/super"
	"github.com/mit-pdos/go-mfs/util"
)

func main() {
	var configPath string
	var image string
	var numInodes, numData uint64
	flag.StringVar(&configPath, "config", "", "Path to config json file")
	flag.StringVar(&image, "f", "", "Image file to create")
	flag.Uint64Var(&numInodes, "i", 0, "Number of inodes (overrides config)")
	flag.Uint64Var(&numData, "d", 0, "Number of data blocks (overrides config)")
	flag.Uint64Var(&util.Debug, "debug", 0, "Debug level")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("FATAL: load config %q: %v", configPath, err)
		os.Exit(1)
	}
	if image != "" {
		cfg.Image = image
	}
	if numInodes != 0 {
		cfg.NumInodes = numInodes
	}
	if numData != 0 {
		cfg.NumData = numData
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("FATAL: invalid config: %v", err)
		os.Exit(1)
	}
	if cfg.Image == "" {
		fmt.Fprintf(os.Stderr, "usage: mkfs -f image [-i inodes] [-d datablocks]\n")
		os.Exit(2)
	}

	sb := super.MkFsSuper(cfg.NumInodes, cfg.NumData)
	d, err := disk.NewFileDisk(cfg.Image, sb.NBlocks())
	if err != nil {
		log.Printf("FATAL: create %q: %v", cfg.Image, err)
		os.Exit(1)
	}
	fsys, err := fs.Mkfs(d, cfg.NumInodes, cfg.NumData)
	if err != nil {
		d.Close()
		log.Printf("FATAL: %v", err)
		os.Exit(1)
	}
	ents, err := fsys.ReadDir(common.ROOTINUM)
	if err != nil {
		fsys.Shutdown()
		log.Printf("FATAL: list root: %v", err)
		os.Exit(1)
	}
	if err := fsys.Shutdown(); err != nil {
		log.Printf("FATAL: %v", err)
		os.Exit(1)
	}
	fmt.Printf("%s: %v\n", cfg.Image, sb)
	for _, e := range ents {
		fmt.Printf("%6d %s\n", e.Inum, e.Name)
	}
}
