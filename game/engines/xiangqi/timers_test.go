package xiangqi

import (
	"testing"
	"time"

	"xqmahjong/game/share"
)

func collectEvents() (*TimerBank, chan share.GameEvent) {
	ch := make(chan share.GameEvent, 64)
	tb := NewTimerBank(func(ev share.GameEvent) { ch <- ev })
	return tb, ch
}

func TestTimerBank_CountdownTickAndExpire(t *testing.T) {
	tb, ch := collectEvents()
	defer tb.CancelAll()

	gen := tb.StartCountdown(TimerTurn, 2, 1)

	select {
	case ev := <-ch:
		tick, ok := ev.(*TimerTickEvent)
		if !ok {
			t.Fatalf("first event expected tick, got %T", ev)
		}
		if tick.Role != TimerTurn || tick.Gen != gen || tick.Remaining != 1 {
			t.Fatalf("tick payload wrong: %+v", tick)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("tick not delivered")
	}

	select {
	case ev := <-ch:
		expire, ok := ev.(*TimerExpireEvent)
		if !ok {
			t.Fatalf("second event expected expire, got %T", ev)
		}
		if expire.Role != TimerTurn || expire.Gen != gen || expire.Seat != 1 {
			t.Fatalf("expire payload wrong: %+v", expire)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expire not delivered")
	}
}

func TestTimerBank_CancelSuppresses(t *testing.T) {
	tb, ch := collectEvents()
	defer tb.CancelAll()

	gen := tb.StartCountdown(TimerClaim, 1, 2)
	tb.Cancel(TimerClaim)
	if tb.Matches(TimerClaim, gen) {
		t.Fatalf("cancelled timer must not match")
	}

	select {
	case ev := <-ch:
		t.Fatalf("cancelled timer must not fire, got %T", ev)
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestTimerBank_RestartReplacesGeneration(t *testing.T) {
	tb, _ := collectEvents()
	defer tb.CancelAll()

	gen1 := tb.StartCountdown(TimerTurn, 30, 0)
	gen2 := tb.StartCountdown(TimerTurn, 30, 1)
	if gen1 == gen2 {
		t.Fatalf("restart must advance generation")
	}
	if tb.Matches(TimerTurn, gen1) {
		t.Fatalf("stale generation must not match")
	}
	if !tb.Matches(TimerTurn, gen2) {
		t.Fatalf("live generation must match")
	}
}

func TestTimerBank_Delay(t *testing.T) {
	tb, ch := collectEvents()
	defer tb.CancelAll()

	gen := tb.StartDelay(TimerAIThink, 20*time.Millisecond, 3)
	select {
	case ev := <-ch:
		expire, ok := ev.(*TimerExpireEvent)
		if !ok || expire.Role != TimerAIThink || expire.Gen != gen || expire.Seat != 3 {
			t.Fatalf("delay expire wrong: %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("delay not delivered")
	}
}

func TestTimerBank_ReleaseAfterExpire(t *testing.T) {
	tb, ch := collectEvents()
	defer tb.CancelAll()

	gen := tb.StartDelay(TimerAIThink, 10*time.Millisecond, 0)
	<-ch
	if !tb.Matches(TimerAIThink, gen) {
		t.Fatalf("expired-but-unprocessed timer should still match")
	}
	tb.Release(TimerAIThink, gen)
	if tb.Matches(TimerAIThink, gen) {
		t.Fatalf("released timer must not match")
	}
}
