package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var sniperEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSniper() *Sniper {
	return NewSniper(5*time.Second, 90*time.Second, sniperEpoch)
}

func TestSniperIdleUntilSafetyNet(t *testing.T) {
	sniper := newTestSniper()

	assert.False(t, sniper.Armed())
	assert.False(t, sniper.PollDue(sniperEpoch.Add(89*time.Second)))
	assert.True(t, sniper.PollDue(sniperEpoch.Add(90*time.Second)))
}

func TestSniperFiresQuietTimeAfterActivity(t *testing.T) {
	sniper := newTestSniper()

	sniper.Activity(sniperEpoch)
	assert.True(t, sniper.Armed())
	assert.False(t, sniper.PollDue(sniperEpoch.Add(4*time.Second)))
	assert.True(t, sniper.PollDue(sniperEpoch.Add(5*time.Second)))
	assert.False(t, sniper.Armed(), "firing must disarm")
}

func TestSniperBurstCollapsesToOnePoll(t *testing.T) {
	sniper := newTestSniper()

	// Three presses within the quiet window keep pushing the deadline out.
	sniper.Activity(sniperEpoch)
	sniper.Activity(sniperEpoch.Add(2 * time.Second))
	sniper.Activity(sniperEpoch.Add(4 * time.Second))

	assert.False(t, sniper.PollDue(sniperEpoch.Add(8*time.Second)))
	assert.True(t, sniper.PollDue(sniperEpoch.Add(9*time.Second)))
	assert.False(t, sniper.PollDue(sniperEpoch.Add(10*time.Second)))
}

func TestSniperCoincidentTriggersSinglePoll(t *testing.T) {
	sniper := newTestSniper()

	// Arm so the deadline lands past the safety net; one PollDue consumes both.
	sniper.Activity(sniperEpoch.Add(88 * time.Second))
	at := sniperEpoch.Add(95 * time.Second)
	assert.True(t, sniper.PollDue(at))
	sniper.PollDone(at)
	assert.False(t, sniper.PollDue(at.Add(time.Second)))
}

func TestSniperNextWake(t *testing.T) {
	sniper := newTestSniper()

	assert.Equal(t, 90*time.Second, sniper.NextWake(sniperEpoch))

	sniper.Activity(sniperEpoch.Add(10 * time.Second))
	assert.Equal(t, 5*time.Second, sniper.NextWake(sniperEpoch.Add(10*time.Second)))

	// Past deadline the wait clamps to zero.
	assert.Equal(t, time.Duration(0), sniper.NextWake(sniperEpoch.Add(20*time.Second)))
}

func TestSniperPollDoneResetsSafetyNet(t *testing.T) {
	sniper := newTestSniper()

	at := sniperEpoch.Add(90 * time.Second)
	assert.True(t, sniper.PollDue(at))
	sniper.PollDone(at)

	assert.False(t, sniper.PollDue(at.Add(89*time.Second)))
	assert.True(t, sniper.PollDue(at.Add(90*time.Second)))
}
