// Package metrics defines the prometheus collectors shared across the
// attendance services, exposed on /metrics by cmd/api.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts attendance sessions minted by lecturers.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrattend_sessions_created_total",
		Help: "Attendance sessions created.",
	})

	// Redemptions counts scan redemption attempts by outcome.
	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrattend_redemptions_total",
		Help: "Redemption attempts by outcome.",
	}, []string{"outcome"})

	// ScanDetections counts positive detections in the frame scanner loop.
	ScanDetections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qrattend_scan_detections_total",
		Help: "Positive code detections in the scanner loop.",
	})

	// CameraErrors counts classified camera acquisition failures.
	CameraErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qrattend_camera_errors_total",
		Help: "Camera acquisition failures by classification.",
	}, []string{"class"})
)
