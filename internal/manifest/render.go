// Package manifest renders a topology plan into Kubernetes objects, encodes them to
// YAML documents and writes them out.
package manifest

import (
	"fmt"
	"strconv"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/utils/ptr"

	"github.com/pbar1/ssh-benchmark/internal/topology"
)

// Kind is the Kubernetes kind of a rendered resource.
type Kind string

const (
	KindNamespace   Kind = "Namespace"
	KindService     Kind = "Service"
	KindStatefulSet Kind = "StatefulSet"
	KindJob         Kind = "Job"
)

// ConcurrencyLabel records the concurrency level of a client job.
const ConcurrencyLabel = "concurrency"

// Resource is one rendered object and the file it is written to.
type Resource struct {
	Kind     Kind
	Name     string
	FileName string
	Object   runtime.Object
}

// Render turns a plan into resources in output order: namespace, server service,
// server set, one job per workload, then the optional client service.
func Render(plan topology.Plan) ([]Resource, error) {
	ns := plan.Namespace.Name
	resources := make([]Resource, 0, len(plan.Workloads)+4)

	resources = append(resources,
		Resource{Kind: KindNamespace, Name: ns, FileName: "ns.k8s.yaml", Object: renderNamespace(plan.Namespace)},
		Resource{Kind: KindService, Name: plan.ServerService.Name, FileName: "server-svc.k8s.yaml", Object: renderService(ns, plan.ServerService)},
		Resource{Kind: KindStatefulSet, Name: plan.Server.Name, FileName: "server-sts.k8s.yaml", Object: renderStatefulSet(ns, plan.Server, plan.ServerService.Name)},
	)

	for _, w := range plan.Workloads {
		resources = append(resources, Resource{
			Kind:     KindJob,
			Name:     w.Name,
			FileName: jobFileName(w.Name),
			Object:   renderJob(ns, plan.ClientImage, w),
		})
	}

	if plan.ClientService != nil {
		resources = append(resources, Resource{
			Kind:     KindService,
			Name:     plan.ClientService.Name,
			FileName: "client-svc.k8s.yaml",
			Object:   renderService(ns, *plan.ClientService),
		})
	}

	if err := checkUnique(resources); err != nil {
		return nil, err
	}
	return resources, nil
}

// jobFileName maps client-<N>[-k] to client-job-<N>[-k].k8s.yaml.
func jobFileName(jobName string) string {
	suffix := strings.TrimPrefix(jobName, topology.ClientName+"-")
	return topology.ClientName + "-job-" + suffix + ".k8s.yaml"
}

func checkUnique(resources []Resource) error {
	files := make(map[string]bool, len(resources))
	objects := make(map[string]bool, len(resources))
	for _, r := range resources {
		if files[r.FileName] {
			return fmt.Errorf("duplicate output file %s", r.FileName)
		}
		files[r.FileName] = true

		key := string(r.Kind) + "/" + r.Name
		if objects[key] {
			return fmt.Errorf("duplicate %s %s", r.Kind, r.Name)
		}
		objects[key] = true
	}
	return nil
}

func renderNamespace(ns topology.NamespaceSpec) *corev1.Namespace {
	return &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: ns.Name},
	}
}

func renderService(namespace string, svc topology.ServiceSpec) *corev1.Service {
	ports := make([]corev1.ServicePort, 0, len(svc.Ports))
	for _, p := range svc.Ports {
		ports = append(ports, corev1.ServicePort{
			Name:       p.Name,
			Port:       p.Port,
			TargetPort: p.Target,
		})
	}

	spec := corev1.ServiceSpec{
		Selector: svc.Selector,
		Ports:    ports,
	}
	switch svc.Visibility {
	case topology.VisibilityHeadless:
		spec.ClusterIP = corev1.ClusterIPNone
	case topology.VisibilityNodePort:
		spec.Type = corev1.ServiceTypeNodePort
	case topology.VisibilityLoadBalancer:
		spec.Type = corev1.ServiceTypeLoadBalancer
	}

	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      svc.Name,
			Namespace: namespace,
		},
		Spec: spec,
	}
}

func renderStatefulSet(namespace string, top topology.ServerTopology, serviceName string) *appsv1.StatefulSet {
	labels := map[string]string{topology.AppLabel: top.Name}

	containers := make([]corev1.Container, 0, len(top.Containers))
	for _, c := range top.Containers {
		containers = append(containers, corev1.Container{
			Name:    c.Name,
			Image:   top.Image,
			Command: []string{topology.ServerName, "--port=" + strconv.Itoa(int(c.Port.Number))},
			Ports: []corev1.ContainerPort{{
				Name:          c.Port.Name,
				ContainerPort: c.Port.Number,
			}},
			Resources: memoryRequirements(top.Footprint),
		})
	}

	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:      top.Name,
			Namespace: namespace,
		},
		Spec: appsv1.StatefulSetSpec{
			ServiceName: serviceName,
			Replicas:    ptr.To(top.Replicas),
			Selector:    &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: copyLabels(labels)},
				Spec:       corev1.PodSpec{Containers: containers},
			},
		},
	}
}

func renderJob(namespace, image string, w topology.ClientWorkload) *batchv1.Job {
	labels := map[string]string{
		topology.AppLabel: topology.ClientName,
		ConcurrencyLabel:  strconv.Itoa(w.Concurrency),
	}

	container := corev1.Container{
		Name:      topology.ClientName,
		Image:     image,
		Command:   clientCommand(w),
		Resources: memoryRequirements(w.Footprint),
	}
	if w.Observability != nil {
		container.Ports = []corev1.ContainerPort{{
			Name:          w.Observability.Name,
			ContainerPort: w.Observability.Port,
		}}
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      w.Name,
			Namespace: namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: ptr.To(int32(0)),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: copyLabels(labels)},
				Spec: corev1.PodSpec{
					Containers:    []corev1.Container{container},
					RestartPolicy: corev1.RestartPolicyNever,
				},
			},
		},
	}
}

// clientCommand builds the client's argument list.
func clientCommand(w topology.ClientWorkload) []string {
	cmd := []string{
		topology.ClientName,
		fmt.Sprintf("--concurrency=%d", w.Concurrency),
	}
	if len(w.Addrs) > 0 {
		cmd = append(cmd, "--addrs="+strings.Join(w.Addrs, ","))
	}
	return cmd
}

func memoryRequirements(f topology.Footprint) corev1.ResourceRequirements {
	return corev1.ResourceRequirements{
		Limits:   corev1.ResourceList{corev1.ResourceMemory: f.Limit.DeepCopy()},
		Requests: corev1.ResourceList{corev1.ResourceMemory: f.Request.DeepCopy()},
	}
}

func copyLabels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
