package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"climbrate/internal/log"
	"climbrate/pkg/naming"
)

func main() {
	parent := flag.String("parent", "", "Parent folder to search")
	suffix := flag.String("suffix", "", "Common video file suffix (h264, avi, mp4)")
	undone := flag.Bool("undone", false, "Only gather videos without a .slopes.csv file")
	save := flag.Bool("save", false, "Save the list to custom.prc in the parent folder")
	printFiles := flag.Bool("print", false, "Print the list")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *parent == "" || *suffix == "" {
		flag.Usage()
		os.Exit(1)
	}
	ext := strings.TrimPrefix(*suffix, ".")

	var videos []string
	var err error
	if *undone {
		videos, err = naming.Undone(*parent, ext)
	} else {
		videos, err = naming.FindVideos(*parent, ext)
	}
	if err != nil {
		log.Fatalf("Failed to gather videos: %v", err)
	}
	if *undone && len(videos) == 0 {
		fmt.Println("All files previously processed, re-evaluate your inputs if this message is a surprise.")
	}

	if *printFiles {
		kind := ""
		if *undone {
			kind = " previously unprocessed (no .slopes.csv file)"
		}
		fmt.Printf("Exporting %d%s file(s) with suffix '%s' found in: %s\n", len(videos), kind, ext, *parent)
		fmt.Println("------------")
		for _, v := range videos {
			fmt.Println(v)
		}
		fmt.Println()
	}

	if *save {
		path := filepath.Join(*parent, "custom.prc")
		if err := naming.WriteProcessList(path, videos); err != nil {
			log.Fatalf("Failed to save process list: %v", err)
		}
		fmt.Printf("Saving files to: %s\n", path)
	}
}
