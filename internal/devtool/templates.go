package devtool

import (
	"slices"
	"strings"
)

// Template is a canned Flink failure used to exercise the agent.
type Template struct {
	Message   string
	ErrorType string
	JobName   string
}

var Templates = map[string]Template{
	"checkpoint": {
		Message:   "Checkpoint expired before completing. If you see this error consistently, consider increasing the checkpoint interval or timeout.",
		ErrorType: "checkpoint_failure",
		JobName:   "Checkpoint Job",
	},
	"timeout": {
		Message:   "java.util.concurrent.TimeoutException: Heartbeat of TaskManager with id container_123 timed out.",
		ErrorType: "task_manager_timeout",
		JobName:   "Timeout Job",
	},
	"oom_meta": {
		Message:   "java.lang.OutOfMemoryError: Metaspace. The Metaspace memory pool is full.",
		ErrorType: "oom_metaspace",
		JobName:   "Metaspace OOM Job",
	},
	"oom_heap": {
		Message:   "java.lang.OutOfMemoryError: Java heap space. Dumping heap to /tmp/heapdump.hprof",
		ErrorType: "oom_heap",
		JobName:   "Heap OOM Job",
	},
	"network": {
		Message:   "org.apache.flink.runtime.io.network.partition.PartitionNotFoundException: Partition xx not found.",
		ErrorType: "network_partition_error",
		JobName:   "Network Job",
	},
}

// TemplateNames lists the template keys in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(Templates))
	for k := range Templates {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func templateHelp() string {
	return strings.Join(TemplateNames(), ", ")
}
