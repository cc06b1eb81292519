package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pfs-project/pfs/build"
	"github.com/pfs-project/pfs/fileserver"
	"github.com/pfs-project/pfs/persist"
)

var (
	serverIndex int
	dataDir     string
	addr        string
	logPath     string
)

const exitCodeGeneral = 1

func die(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(exitCodeGeneral)
}

func startCmd(cmd *cobra.Command, args []string) {
	var log *persist.Logger
	var err error
	if logPath != "" {
		log, err = persist.NewLogger(logPath)
	} else {
		log = persist.NewWriterLogger(os.Stdout)
	}
	if err != nil {
		die("could not open log file:", err)
	}
	defer log.Close()

	srv, err := fileserver.NewServer(addr, serverIndex, dataDir, log)
	if err != nil {
		die("could not start file service:", err)
	}

	log.Println("file service", serverIndex, "listening on", addr, "storing chunks under", dataDir)
	if err := srv.Serve(); err != nil {
		die("file service stopped:", err)
	}
}

func main() {
	root := &cobra.Command{
		Use:   os.Args[0],
		Short: "pfs file service v" + build.Version,
		Long:  "pfs file service v" + build.Version,
		Run:   startCmd,
	}
	root.Flags().IntVarP(&serverIndex, "index", "i", 0, "this file service's index in the server list (k mod W)")
	root.Flags().StringVarP(&dataDir, "dir", "d", "pfs-chunks", "directory to store chunk files under")
	root.Flags().StringVar(&addr, "addr", "localhost:8890", "address to serve chunk RPCs on")
	root.Flags().StringVar(&logPath, "log", "", "log file path (defaults to stdout)")

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeGeneral)
	}
}
