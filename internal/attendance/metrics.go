package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricClockEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_clock_events_applied_total",
		Help: "Device clock events applied to attendance records, by kind.",
	}, []string{"kind"})

	metricDuplicatePunches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_duplicate_punches_total",
		Help: "Device punches dropped by the dedup window.",
	})

	metricOvertimeAssigned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_overtime_assigned_total",
		Help: "Successful admin overtime assignments.",
	})

	metricSweepAbsent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sweep_marked_absent_total",
		Help: "Records created as absent by the sweep.",
	})

	metricSweepMissedClockOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sweep_marked_missed_clockout_total",
		Help: "Open records closed as missed clock-out by the sweep.",
	})

	metricSweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sweep_employee_errors_total",
		Help: "Per-employee failures isolated during a sweep run.",
	})

	metricSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendance_sweep_duration_seconds",
		Help:    "Wall time of one sweep run.",
		Buckets: prometheus.DefBuckets,
	})
)
