package memory_test

import (
	"testing"

	"github.com/DataLoomHQ/dataloom-cli/internal/memory"
)

func TestSessionServiceLifecycle(t *testing.T) {
	s := openStore(t)
	svc := memory.NewSessionService(s)

	sess, err := svc.Start(memory.DatasetInfo{Name: "metrics.csv"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if cur := svc.Current(); cur == nil || cur.SessionID != sess.SessionID {
		t.Fatalf("current session = %+v", cur)
	}
	if got := svc.Get(sess.SessionID); got != sess {
		t.Fatal("Get should return the active session")
	}

	sess.Insights = append(sess.Insights, "note")
	if err := svc.Persist(sess.SessionID); err != nil {
		t.Fatalf("persist: %v", err)
	}
	loaded, err := s.LoadSession(sess.SessionID)
	if err != nil || loaded == nil {
		t.Fatalf("load persisted: %v", err)
	}
	if len(loaded.Insights) != 1 {
		t.Fatalf("persisted insights = %v", loaded.Insights)
	}

	if err := svc.End(sess.SessionID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if svc.Current() != nil {
		t.Fatal("current should be cleared after End")
	}
	if svc.Get(sess.SessionID) != nil {
		t.Fatal("ended session should leave the active set")
	}
}

func TestSessionServicePersistUnknownIDIsNoop(t *testing.T) {
	s := openStore(t)
	svc := memory.NewSessionService(s)
	if err := svc.Persist("session_unknown"); err != nil {
		t.Fatalf("persist unknown id: %v", err)
	}
}
