package replicated

import "testing"

type recorder struct {
	changes []Change
}

func (r *recorder) Publish(c Change) { r.changes = append(r.changes, c) }

func TestValue_PublishesOnlyOnChange(t *testing.T) {
	rec := &recorder{}
	store := NewStore(RoleServer, rec)
	score := NewValue(store, "team_score", 0)

	score.Set(5)
	score.Set(5)
	score.Update(func(v int) int { return v - 1 })

	if score.Get() != 4 {
		t.Fatalf("Expected value 4, got %d", score.Get())
	}
	if len(rec.changes) != 2 {
		t.Fatalf("Expected 2 published changes, got %d", len(rec.changes))
	}
	if rec.changes[1].Field != "team_score" || rec.changes[1].Value != 4 {
		t.Errorf("Unexpected change %+v", rec.changes[1])
	}
}

func TestValue_ClientRoleCannotWrite(t *testing.T) {
	rec := &recorder{}
	store := NewStore(RoleClient, rec)
	v := NewValue(store, "phase", "lobby")

	if v.Set("playing") {
		t.Error("Client role write should be rejected")
	}
	if v.Get() != "lobby" {
		t.Errorf("Value changed by a client write: %q", v.Get())
	}
	if len(rec.changes) != 0 {
		t.Errorf("Rejected writes must not publish, got %d changes", len(rec.changes))
	}
}

type row struct {
	ID    ClientID
	Name  string
	Ready bool
}

func TestList_SetDetectsFieldChanges(t *testing.T) {
	rec := &recorder{}
	store := NewStore(RoleServer, rec)
	roster := NewList[row](store, "roster")

	roster.Append(row{ID: 1, Name: "a"})
	roster.Append(row{ID: 2, Name: "b"})

	i := roster.IndexFunc(func(r row) bool { return r.ID == 2 })
	if i != 1 {
		t.Fatalf("Expected index 1, got %d", i)
	}

	r := roster.At(i)
	roster.Set(i, r)
	r.Ready = true
	roster.Set(i, r)

	if len(rec.changes) != 3 {
		t.Fatalf("Expected 3 publishes (2 appends, 1 ready change), got %d", len(rec.changes))
	}
	snapshot := rec.changes[2].Value.([]row)
	if !snapshot[1].Ready {
		t.Error("Published snapshot should carry the ready flag")
	}

	roster.RemoveAt(0)
	if roster.Len() != 1 || roster.At(0).ID != 2 {
		t.Errorf("Unexpected roster after removal: %+v", roster.Items())
	}
}

func TestList_ItemsIsACopy(t *testing.T) {
	store := NewStore(RoleServer, nil)
	l := NewList[int](store, "l")
	l.Append(1)

	items := l.Items()
	items[0] = 99
	if l.At(0) != 1 {
		t.Error("Mutating Items() result must not affect the list")
	}
}
