package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pfs-project/pfs/build"
	"github.com/pfs-project/pfs/config"
	"github.com/pfs-project/pfs/metaserver"
	"github.com/pfs-project/pfs/persist"
)

var (
	configPath string
	httpAddr   string
	streamAddr string
	logPath    string
)

// exitCodeGeneral mirrors the convention the client shell uses.
const exitCodeGeneral = 1

func die(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(exitCodeGeneral)
}

func startCmd(cmd *cobra.Command, args []string) {
	servers, err := config.Load(configPath)
	if err != nil {
		die("could not load server list:", err)
	}

	var log *persist.Logger
	if logPath != "" {
		log, err = persist.NewLogger(logPath)
	} else {
		log = persist.NewWriterLogger(os.Stdout)
	}
	if err != nil {
		die("could not open log file:", err)
	}
	defer log.Close()

	srv, err := metaserver.NewServer(httpAddr, streamAddr, servers.FileAddrs, build.ChunkSize(), log)
	if err != nil {
		die("could not start metadata service:", err)
	}

	log.Println("metadata service listening, control surface on " + httpAddr + ", token stream on " + streamAddr)
	if err := srv.Serve(); err != nil {
		die("metadata service stopped:", err)
	}
}

func main() {
	root := &cobra.Command{
		Use:   os.Args[0],
		Short: "pfs metadata service v" + build.Version,
		Long:  "pfs metadata service v" + build.Version,
		Run:   startCmd,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "pfs.servers", "path to the server list file")
	root.Flags().StringVar(&httpAddr, "addr", "localhost:8880", "address to serve the unary control surface on")
	root.Flags().StringVar(&streamAddr, "stream-addr", "localhost:8881", "address to serve the TokenStream on")
	root.Flags().StringVar(&logPath, "log", "", "log file path (defaults to stdout)")

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeGeneral)
	}
}
