package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"time"

	"github.com/mit-pdos/go-mfs/client"
	"github.com/mit-pdos/go-mfs/common"
	"github.com/mit-pdos/go-mfs/config"
	"github.com/mit-pdos/go-mfs/util"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: mfs [flags] command [args]

commands:
  ping
  lookup PATH
  stat PATH
  ls PATH
  mkdir PATH
  touch PATH
  cat PATH
  put LOCALFILE PATH
  rm PATH
  shutdown

flags:
`)
	flag.PrintDefaults()
}

func main() {
	var configPath, host string
	var port int
	var timeout time.Duration
	flag.StringVar(&configPath, "config", "", "Path to config json file")
	flag.StringVar(&host, "host", "", "Server host (overrides config)")
	flag.IntVar(&port, "port", 0, "Server port (overrides config)")
	flag.DurationVar(&timeout, "timeout", 0, "Reply timeout (overrides config)")
	flag.Uint64Var(&util.Debug, "debug", 0, "Debug level")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("FATAL: load config %q: %v", configPath, err)
		os.Exit(1)
	}
	if host != "" {
		cfg.Host = host
	}
	if port != 0 {
		cfg.Port = port
	}
	if timeout != 0 {
		cfg.TimeoutMs = int(timeout / time.Millisecond)
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("FATAL: invalid config: %v", err)
		os.Exit(1)
	}

	c, err := client.DialTimeout(cfg.Host, cfg.Port, cfg.Timeout())
	if err != nil {
		log.Printf("FATAL: %v", err)
		os.Exit(1)
	}
	defer c.Close()

	if err := run(c, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mfs %s: %v\n", flag.Arg(0), err)
		c.Close()
		os.Exit(1)
	}
}

func nargs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	return nil
}

// parent resolves the directory of p and returns it with the final name.
func parent(c *client.Client, p string) (common.Inum, string, error) {
	p = path.Clean("/" + p)
	dinum, err := c.LookupPath(path.Dir(p))
	if err != nil {
		return common.NULLINUM, "", err
	}
	return dinum, path.Base(p), nil
}

func run(c *client.Client, cmd string, args []string) error {
	switch cmd {
	case "ping":
		return c.Ping()
	case "shutdown":
		return c.Shutdown()
	}
	if cmd == "put" {
		if err := nargs(args, 2); err != nil {
			return err
		}
		return put(c, args[0], args[1])
	}
	if err := nargs(args, 1); err != nil {
		return err
	}
	p := args[0]
	switch cmd {
	case "lookup":
		inum, err := c.LookupPath(p)
		if err != nil {
			return err
		}
		fmt.Println(inum)
	case "stat":
		inum, err := c.LookupPath(p)
		if err != nil {
			return err
		}
		st, err := c.Stat(inum)
		if err != nil {
			return err
		}
		fmt.Printf("inode %d type %v size %d\n", inum, st.Type, st.Size)
	case "ls":
		inum, err := c.LookupPath(p)
		if err != nil {
			return err
		}
		ents, err := c.ReadDir(inum)
		if err != nil {
			return err
		}
		for _, de := range ents {
			fmt.Printf("%6d %s\n", de.Inum, de.Name)
		}
	case "mkdir", "touch":
		dinum, name, err := parent(c, p)
		if err != nil {
			return err
		}
		t := common.FTYPE_REG
		if cmd == "mkdir" {
			t = common.FTYPE_DIR
		}
		_, err = c.Create(dinum, t, name)
		return err
	case "rm":
		dinum, name, err := parent(c, p)
		if err != nil {
			return err
		}
		return c.Unlink(dinum, name)
	case "cat":
		return cat(c, p)
	default:
		return fmt.Errorf("unknown command")
	}
	return nil
}

func cat(c *client.Client, p string) error {
	inum, err := c.LookupPath(p)
	if err != nil {
		return err
	}
	st, err := c.Stat(inum)
	if err != nil {
		return err
	}
	if st.Type != common.FTYPE_REG {
		return fmt.Errorf("%s: %w", p, common.ErrNotFile)
	}
	for off := uint64(0); off < st.Size; off += common.BlockSize {
		n := util.Min(common.BlockSize, st.Size-off)
		b, err := c.Read(inum, off, n)
		if errors.Is(err, common.ErrHole) {
			b = make([]byte, n)
		} else if err != nil {
			return err
		}
		os.Stdout.Write(b)
	}
	return nil
}

func put(c *client.Client, local string, p string) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	if uint64(len(data)) > common.MAXFILESZ {
		return fmt.Errorf("%s: %d bytes exceeds %d", local, len(data), common.MAXFILESZ)
	}
	dinum, name, err := parent(c, p)
	if err != nil {
		return err
	}
	inum, err := c.Create(dinum, common.FTYPE_REG, name)
	if err != nil {
		return err
	}
	for off := uint64(0); off < uint64(len(data)); off += common.BlockSize {
		end := util.Min(off+common.BlockSize, uint64(len(data)))
		if err := c.Write(inum, off, data[off:end]); err != nil {
			return err
		}
	}
	return nil
}
