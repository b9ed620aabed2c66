package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveReminderRun(t *testing.T) {
	before := testutil.ToFloat64(reminderRunsTotal.WithLabelValues("manual", "failure"))
	ObserveReminderRun("manual", false, time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(reminderRunsTotal.WithLabelValues("manual", "failure")))
}

func TestIncDispatch(t *testing.T) {
	before := testutil.ToFloat64(notificationsDispatchedTotal.WithLabelValues("SMS", "sent"))
	IncDispatch("SMS", "sent")
	assert.Equal(t, before+1, testutil.ToFloat64(notificationsDispatchedTotal.WithLabelValues("SMS", "sent")))
}

func TestAddCleanupDeletedIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(cleanupDeletedTotal)
	AddCleanupDeleted(0)
	AddCleanupDeleted(3)
	assert.Equal(t, before+3, testutil.ToFloat64(cleanupDeletedTotal))
}
