package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type deploymentKey struct {
	state string
	code  string
}

type deployCollector struct {
	mu             sync.Mutex
	deployments    map[deploymentKey]uint64
	durations      *histogram
	searchAttempts uint64
}

var deploymentCollector = &deployCollector{
	deployments: make(map[deploymentKey]uint64),
	durations:   newHistogram(),
}

// ObserveDeployment records the terminal state of one pipeline run.
func ObserveDeployment(state, errorCode string, duration time.Duration) {
	deploymentCollector.mu.Lock()
	defer deploymentCollector.mu.Unlock()
	deploymentCollector.deployments[deploymentKey{state: state, code: errorCode}]++
	deploymentCollector.durations.observe(duration.Seconds())
}

// AddSearchAttempts accumulates vanity-search attempts across runs.
func AddSearchAttempts(attempts uint64) {
	deploymentCollector.mu.Lock()
	defer deploymentCollector.mu.Unlock()
	deploymentCollector.searchAttempts += attempts
}

func (c *deployCollector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	type deploymentMetric struct {
		deploymentKey
		value uint64
	}
	deployments := make([]deploymentMetric, 0, len(c.deployments))
	for key, value := range c.deployments {
		deployments = append(deployments, deploymentMetric{deploymentKey: key, value: value})
	}
	sort.Slice(deployments, func(i, j int) bool {
		if deployments[i].state == deployments[j].state {
			return deployments[i].code < deployments[j].code
		}
		return deployments[i].state < deployments[j].state
	})

	var builder strings.Builder
	builder.Grow(512)

	builder.WriteString("# HELP openmint_deployments_total Total number of deployment pipeline runs by terminal state.\n")
	builder.WriteString("# TYPE openmint_deployments_total counter\n")
	for _, metric := range deployments {
		builder.WriteString(fmt.Sprintf("openmint_deployments_total{state=\"%s\",error_code=\"%s\"} %d\n",
			escape(metric.state), escape(metric.code), metric.value))
	}

	builder.WriteString("# HELP openmint_deployment_duration_seconds Deployment pipeline duration in seconds.\n")
	builder.WriteString("# TYPE openmint_deployment_duration_seconds histogram\n")
	for idx, bound := range c.durations.buckets {
		builder.WriteString(fmt.Sprintf("openmint_deployment_duration_seconds_bucket{le=\"%s\"} %d\n",
			formatFloat(bound), c.durations.counts[idx]))
	}
	builder.WriteString(fmt.Sprintf("openmint_deployment_duration_seconds_bucket{le=\"+Inf\"} %d\n", c.durations.count))
	builder.WriteString(fmt.Sprintf("openmint_deployment_duration_seconds_sum %s\n", formatFloat(c.durations.sum)))
	builder.WriteString(fmt.Sprintf("openmint_deployment_duration_seconds_count %d\n", c.durations.count))

	builder.WriteString("# HELP openmint_search_attempts_total Total vanity-address candidates tested.\n")
	builder.WriteString("# TYPE openmint_search_attempts_total counter\n")
	builder.WriteString(fmt.Sprintf("openmint_search_attempts_total %d\n", c.searchAttempts))

	return builder.String()
}
