// Package metrics defines the Prometheus instruments for the client core:
// backend API calls, session transitions, the points balance and the chat
// channel. Bridge HTTP metrics live in the middleware package.
//
// All metrics are registered in the default Prometheus registry and are
// exposed by the bridge at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// apiRequestsTotal counts backend REST calls.
	//
	// Labels: method, route (/users/{id}/points), status (200, 401, "error" for transport failures)
	// Type: Counter
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanhub_api_requests_total",
			Help: "Total number of backend API requests",
		},
		[]string{"method", "route", "status"},
	)

	// apiRequestDuration measures backend round trips.
	//
	// Labels: method, route
	// Type: Histogram
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanhub_api_request_duration_seconds",
			Help:    "Backend API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// authAttemptsTotal counts login and registration attempts by result.
	//
	// Labels: kind (login, register), result (success, invalid_credentials, rejected, malformed, error)
	// Type: Counter
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanhub_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"kind", "result"},
	)

	// sessionTransitionsTotal counts session state changes.
	//
	// Labels: from, to, reason (restore, login, register, logout, unauthorized, expired)
	// Type: Counter
	sessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanhub_session_transitions_total",
			Help: "Total number of session state transitions",
		},
		[]string{"from", "to", "reason"},
	)

	// pointsBalance mirrors the last server-confirmed balance.
	//
	// Type: Gauge
	pointsBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fanhub_points_balance",
			Help: "Last point balance confirmed by the server",
		},
	)

	// pointsAwardsTotal counts award requests by activity type and result.
	//
	// Labels: activity_type, result (success, error)
	// Type: Counter
	pointsAwardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanhub_points_awards_total",
			Help: "Total number of point award requests",
		},
		[]string{"activity_type", "result"},
	)

	// redemptionsTotal counts reward redemptions by result.
	//
	// Labels: result (success, rejected, error)
	// Type: Counter
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanhub_redemptions_total",
			Help: "Total number of reward redemption attempts",
		},
		[]string{"result"},
	)

	// chatOnlineUsers is the last online-user count pushed by the server.
	//
	// Type: Gauge
	chatOnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fanhub_chat_online_users",
			Help: "Online users reported by the chat server",
		},
	)

	// chatEventsTotal counts chat events received by type.
	//
	// Labels: event (recent_messages, new_message, user_count)
	// Type: Counter
	chatEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanhub_chat_events_total",
			Help: "Total number of chat events received",
		},
		[]string{"event"},
	)

	// realtimeConnectionsTotal counts socket connection outcomes.
	//
	// Labels: result (connected, connect_error, disconnected)
	// Type: Counter
	realtimeConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanhub_realtime_connections_total",
			Help: "Total number of realtime connection events",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(authAttemptsTotal)
	prometheus.MustRegister(sessionTransitionsTotal)
	prometheus.MustRegister(pointsBalance)
	prometheus.MustRegister(pointsAwardsTotal)
	prometheus.MustRegister(redemptionsTotal)
	prometheus.MustRegister(chatOnlineUsers)
	prometheus.MustRegister(chatEventsTotal)
	prometheus.MustRegister(realtimeConnectionsTotal)
}

// RecordAPIRequest records one backend call. A status of 0 means the
// request never produced a response.
//
// Example:
//
//	start := time.Now()
//	resp, err := httpClient.Do(req)
//	metrics.RecordAPIRequest("POST", "/auth/login", status, time.Since(start))
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	apiRequestsTotal.WithLabelValues(method, route, label).Inc()
	apiRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncrementAuthAttempts counts a login or registration outcome.
func IncrementAuthAttempts(kind, result string) {
	authAttemptsTotal.WithLabelValues(kind, result).Inc()
}

// RecordSessionTransition counts a session state change.
func RecordSessionTransition(from, to, reason string) {
	sessionTransitionsTotal.WithLabelValues(from, to, reason).Inc()
}

// SetPointsBalance updates the balance gauge.
func SetPointsBalance(points int) {
	pointsBalance.Set(float64(points))
}

// IncrementPointsAwards counts an award request outcome.
func IncrementPointsAwards(activityType, result string) {
	pointsAwardsTotal.WithLabelValues(activityType, result).Inc()
}

// IncrementRedemptions counts a redemption outcome.
func IncrementRedemptions(result string) {
	redemptionsTotal.WithLabelValues(result).Inc()
}

// SetChatOnlineUsers updates the chat gauge.
func SetChatOnlineUsers(count int) {
	chatOnlineUsers.Set(float64(count))
}

// IncrementChatEvents counts a received chat event.
func IncrementChatEvents(event string) {
	chatEventsTotal.WithLabelValues(event).Inc()
}

// IncrementRealtimeConnections counts a connection lifecycle event.
func IncrementRealtimeConnections(result string) {
	realtimeConnectionsTotal.WithLabelValues(result).Inc()
}
