package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	utilexec "k8s.io/client-go/util/exec"
	"k8s.io/utils/ptr"

	"github.com/retisctl/arc/pkg/k8s/client"
	"github.com/retisctl/arc/pkg/k8s/inventory"
)

const (
	// DefaultNamespace hosts the per-node debug pods.
	DefaultNamespace = "default"
	// DefaultDebugImage is the image used for the debug pod container. Any
	// image with a POSIX shell and chroot works.
	DefaultDebugImage = "registry.access.redhat.com/ubi9/ubi-minimal:latest"

	debugContainerName = "debug"
	hostRoot           = "/host"

	podReadyInterval = 500 * time.Millisecond
	maxStderrDetail  = 2048
)

// DebugPodDialer opens sessions backed by node-pinned privileged debug pods.
type DebugPodDialer struct {
	// Client is the Kubernetes client used for pod lifecycle and exec.
	Client client.Interface
	// Config is the rest config backing Client, required for SPDY exec.
	Config *rest.Config
	// Namespace for the debug pods. Defaults to DefaultNamespace.
	Namespace string
	// Image for the debug container. Defaults to DefaultDebugImage.
	Image string
	// PodReadyTimeout bounds how long Dial waits for the debug pod to start.
	// Defaults to two minutes.
	PodReadyTimeout time.Duration
}

// Dial creates the debug pod on the node and waits for it to be running.
func (d *DebugPodDialer) Dial(ctx context.Context, node inventory.Node) (Session, error) {
	namespace := d.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	image := d.Image
	if image == "" {
		image = DefaultDebugImage
	}
	readyTimeout := d.PodReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 2 * time.Minute
	}

	pod := debugPodSpec(node, namespace, image)

	created, err := d.Client.CoreV1().Pods(namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create debug pod on node %s: %w", node.Name, err)
	}

	slog.Debug("created debug pod", "node", node.Name, "pod", created.Name, "namespace", namespace)

	s := &debugPodSession{
		client:    d.Client,
		config:    d.Config,
		node:      node.Name,
		namespace: namespace,
		podName:   created.Name,
	}

	if err := s.waitReady(ctx, readyTimeout); err != nil {
		// Best effort cleanup of the half-started pod.
		_ = s.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("debug pod for node %s did not become ready: %w", node.Name, err)
	}

	return s, nil
}

// debugPodSpec builds the host-namespace pod pinned to the node. The host
// filesystem is mounted at /host and commands run under chroot into it.
func debugPodSpec(node inventory.Node, namespace, image string) *corev1.Pod {
	name := fmt.Sprintf("arc-debug-%s-%s", sanitizeName(node.ShortName()), uuid.NewString()[:8])

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels: map[string]string{
				"app.kubernetes.io/name":       "arc",
				"app.kubernetes.io/managed-by": "arc",
			},
		},
		Spec: corev1.PodSpec{
			NodeName:      node.Name,
			RestartPolicy: corev1.RestartPolicyNever,
			HostPID:       true,
			HostNetwork:   true,
			HostIPC:       true,
			Tolerations: []corev1.Toleration{
				{Operator: corev1.TolerationOpExists},
			},
			Containers: []corev1.Container{
				{
					Name:    debugContainerName,
					Image:   image,
					Command: []string{"sh", "-c", "sleep infinity"},
					SecurityContext: &corev1.SecurityContext{
						Privileged: ptr.To(true),
					},
					VolumeMounts: []corev1.VolumeMount{
						{Name: "host", MountPath: hostRoot},
					},
				},
			},
			Volumes: []corev1.Volume{
				{
					Name: "host",
					VolumeSource: corev1.VolumeSource{
						HostPath: &corev1.HostPathVolumeSource{
							Path: "/",
							Type: ptr.To(corev1.HostPathDirectory),
						},
					},
				},
			},
		},
	}
}

type debugPodSession struct {
	client    client.Interface
	config    *rest.Config
	node      string
	namespace string
	podName   string
}

func (s *debugPodSession) waitReady(ctx context.Context, timeout time.Duration) error {
	return wait.PollUntilContextTimeout(ctx, podReadyInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			pod, err := s.client.CoreV1().Pods(s.namespace).Get(ctx, s.podName, metav1.GetOptions{})
			if err != nil {
				return false, err
			}

			switch pod.Status.Phase {
			case corev1.PodRunning:
				return true, nil
			case corev1.PodFailed, corev1.PodSucceeded:
				return false, fmt.Errorf("debug pod terminated prematurely: %s", pod.Status.Phase)
			default:
				return false, nil
			}
		},
	)
}

// Run executes the command on the node host under chroot.
func (s *debugPodSession) Run(ctx context.Context, command string, timeout time.Duration) (*Result, error) {
	return s.exec(ctx, []string{"chroot", hostRoot, "sh", "-c", command}, command, nil, timeout)
}

// CopyTo streams the local file into the node's filesystem via the host
// mount. Local filesystem access is confined to reading localPath.
func (s *debugPodSession) CopyTo(ctx context.Context, localPath, remotePath string, timeout time.Duration) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file %s: %w", localPath, err)
	}
	defer f.Close()

	cmd := fmt.Sprintf("cat > %s", shellQuote(hostRoot+remotePath))
	if _, err := s.exec(ctx, []string{"sh", "-c", cmd}, cmd, f, timeout); err != nil {
		return fmt.Errorf("failed to copy %s to node %s:%s: %w", localPath, s.node, remotePath, err)
	}

	return nil
}

// CopyFrom fetches the remote file to localPath, streaming it straight to
// disk so large capture files never sit in memory. The existence probe runs
// first so a missing artifact is distinguishable from a read failure.
func (s *debugPodSession) CopyFrom(ctx context.Context, remotePath, localPath string, timeout time.Duration) error {
	probe := fmt.Sprintf("test -f %s", shellQuote(hostRoot+remotePath))
	if _, err := s.exec(ctx, []string{"sh", "-c", probe}, probe, nil, timeout); err != nil {
		var execErr *ExecError
		if errors.As(err, &execErr) && execErr.ExitCode > 0 {
			return fmt.Errorf("%w: %s on node %s", ErrFileNotFound, remotePath, s.node)
		}
		return err
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}

	cmd := fmt.Sprintf("cat %s", shellQuote(hostRoot+remotePath))
	_, execErr := s.execTo(ctx, []string{"sh", "-c", cmd}, cmd, nil, f, timeout)

	if closeErr := f.Close(); execErr == nil && closeErr != nil {
		execErr = closeErr
	}
	if execErr != nil {
		// Do not leave a truncated artifact behind.
		_ = os.Remove(localPath)
		return fmt.Errorf("failed to read %s from node %s: %w", remotePath, s.node, execErr)
	}

	return nil
}

// Close deletes the debug pod.
func (s *debugPodSession) Close(ctx context.Context) error {
	err := s.client.CoreV1().Pods(s.namespace).Delete(ctx, s.podName, metav1.DeleteOptions{
		GracePeriodSeconds: ptr.To(int64(0)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete debug pod %s: %w", s.podName, err)
	}
	return nil
}

// newExecutor builds the exec transport; swapped in tests.
var newExecutor = func(config *rest.Config, method string, url *url.URL) (remotecommand.Executor, error) {
	return remotecommand.NewSPDYExecutor(config, method, url)
}

// exec runs argv in the debug container, bounded by timeout when non-zero,
// buffering stdout into the Result.
func (s *debugPodSession) exec(ctx context.Context, argv []string, display string, stdin io.Reader, timeout time.Duration) (*Result, error) {
	var stdout bytes.Buffer
	res, err := s.execTo(ctx, argv, display, stdin, &stdout, timeout)
	if res != nil {
		res.Stdout = stdout.String()
	}
	return res, err
}

// execTo runs argv in the debug container, streaming stdout to the given
// writer, bounded by timeout when non-zero.
func (s *debugPodSession) execTo(ctx context.Context, argv []string, display string, stdin io.Reader, stdout io.Writer, timeout time.Duration) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := s.client.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(s.namespace).
		Name(s.podName).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: debugContainerName,
			Command:   argv,
			Stdin:     stdin != nil,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := newExecutor(s.config, "POST", req.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to create exec transport for node %s: %w", s.node, err)
	}

	var stderr bytes.Buffer
	streamErr := executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: &stderr,
	})

	res := &Result{
		Stderr: stderr.String(),
	}

	if streamErr == nil {
		return res, nil
	}

	if ctx.Err() != nil && timeout > 0 {
		return res, &TimeoutError{Node: s.node, Command: display, Timeout: timeout}
	}

	var exitErr utilexec.CodeExitError
	if errors.As(streamErr, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		return res, &ExecError{
			Node:     s.node,
			Command:  display,
			ExitCode: res.ExitCode,
			Stderr:   truncate(res.Stderr, maxStderrDetail),
		}
	}

	res.ExitCode = -1
	return res, &ExecError{
		Node:     s.node,
		Command:  display,
		ExitCode: -1,
		Stderr:   truncate(res.Stderr, maxStderrDetail),
		Err:      streamErr,
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func sanitizeName(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
