// Package k8s groups the Kubernetes-facing layers of arc: clientset
// construction (client) and the read-only node/workload inventory snapshot
// consumed by the selector (inventory).
package k8s
