/*
DESCRIPTION
  vcoreprobe is a reference harness for the decode core: it watches a
  directory for dropped raw VP9 access-unit files and runs each one
  through vp9.Decoder, logging the outcome. It plays the role cmd/rv's
  probe.go plays for revid — a thin driver that owns I/O and wiring so
  the library packages never have to.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Command vcoreprobe exercises the decode core against a directory of
// raw access-unit dumps, standing in for the test-vector harness of
// spec.md §8 until a real conformance corpus is wired in.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/vcore/vp9"
)

// Logging configuration, in the cmd/rv style (main.go's logPath/
// logMaxSize/logMaxBackup/logMaxAge/logVerbosity/logSuppress block).
const (
	logPath      = "vcoreprobe.log"
	logMaxSize   = 50 // MB
	logMaxBackup = 5
	logMaxAge    = 7 // days
	logVerbosity = logging.Info
	logSuppress  = true
)

func main() {
	watchDir := flag.String("dir", ".", "directory to watch for dropped access-unit files")
	flag.Parse()

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stdout), logSuppress)

	log.Info("starting vcoreprobe", "watching", *watchDir)

	if err := run(log, *watchDir); err != nil {
		log.Fatal("vcoreprobe exiting", "error", err)
	}
}

func run(log logging.Logger, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "vcoreprobe: create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "vcoreprobe: watch %s", dir)
	}

	dec := vp9.NewDecoder(log, vp9.Options{})
	ctx := context.Background()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			probeFile(ctx, log, dec, ev.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warning("watcher error", "error", err)
		}
	}
}

// probeFile decodes one dropped access-unit file and logs the result;
// a decode failure never stops the watch loop, matching §7's policy
// that one bad frame does not take down the caller.
func probeFile(ctx context.Context, log logging.Logger, dec *vp9.Decoder, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warning("could not read dropped file", "path", path, "error", err)
		return
	}

	results, err := dec.Decode(ctx, data)
	if err != nil {
		log.Error("decode failed", "path", filepath.Base(path), "error", err)
		return
	}
	log.Info("decoded access unit", "path", filepath.Base(path), "frames", len(results))
}
