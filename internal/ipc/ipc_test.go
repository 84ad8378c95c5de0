package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"capturesync/internal/daemon"
	"capturesync/internal/ipc"
	"capturesync/internal/logging"
	"capturesync/internal/testsupport"
)

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithOverlays("red", ""))
	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger, daemon.Options{})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Unix socket paths are length limited; keep this one short.
	sockDir, err := os.MkdirTemp("", "cs")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(sockDir) })
	socket := filepath.Join(sockDir, "cs.sock")

	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	start, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC: %v", err)
	}
	if !start.OK || start.State != "running" || start.RunID == "" {
		t.Fatalf("start response = %+v", start)
	}

	resume, err := client.Resume()
	if err != nil {
		t.Fatalf("Resume RPC: %v", err)
	}
	if resume.OK || !strings.Contains(resume.Message, "invalid lifecycle transition") {
		t.Fatalf("resume while running = %+v", resume)
	}

	pause, err := client.Pause()
	if err != nil || !pause.OK || pause.State != "paused" {
		t.Fatalf("pause = %+v, err = %v", pause, err)
	}
	if resumed, err := client.Resume(); err != nil || !resumed.OK {
		t.Fatalf("resume = %+v, err = %v", resumed, err)
	}

	testsupport.WriteImage(t, filepath.Join(testsupport.BaseDir(cfg), "staging", "pic.jpg"), 40, 30, testsupport.NamedColor("white"))
	if err := os.Rename(filepath.Join(testsupport.BaseDir(cfg), "staging", "pic.jpg"), filepath.Join(cfg.Paths.SourceDir, "pic.jpg")); err != nil {
		t.Fatalf("rename: %v", err)
	}
	testsupport.Eventually(t, 5*time.Second, func() bool {
		history, err := client.History(ipc.HistoryRequest{Kinds: []string{"processed"}})
		return err == nil && len(history.Entries) == 1
	}, "processed file never reached history")

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC: %v", err)
	}
	if status.State != "running" || status.Processed != 1 || filepath.Base(status.LastOutput) != "pic_processed.jpg" {
		t.Fatalf("status = %+v", status)
	}
	if status.SourceDir != cfg.Paths.SourceDir || status.PID != os.Getpid() {
		t.Fatalf("status paths = %+v", status)
	}

	stop, err := client.Stop()
	if err != nil || !stop.OK || stop.State != "stopped" {
		t.Fatalf("stop = %+v, err = %v", stop, err)
	}
}
