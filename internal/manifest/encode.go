package manifest

import (
	"bytes"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	k8sruntime "k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/yaml"
)

// Document is one encoded resource.
type Document struct {
	FileName string
	Data     []byte
}

// Encode marshals every resource to YAML with apiVersion and kind filled in from the
// client-go scheme. Documents are returned in resource order.
func Encode(resources []Resource) ([]Document, error) {
	docs := make([]Document, len(resources))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, r := range resources {
		i, r := i, r // per-iteration copy; go directive is below 1.22
		g.Go(func() error {
			data, err := encodeObject(r.Object)
			if err != nil {
				return fmt.Errorf("failed to encode %s %s: %w", r.Kind, r.Name, err)
			}
			docs[i] = Document{FileName: r.FileName, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func encodeObject(obj k8sruntime.Object) ([]byte, error) {
	if obj == nil {
		return nil, fmt.Errorf("nil object")
	}
	obj = obj.DeepCopyObject()

	gvks, _, err := scheme.Scheme.ObjectKinds(obj)
	if err != nil {
		return nil, err
	}
	obj.GetObjectKind().SetGroupVersionKind(gvks[0])

	return yaml.Marshal(obj)
}

// Bundle joins documents into one multi-document YAML stream.
func Bundle(docs []Document) []byte {
	var buf bytes.Buffer
	for i, d := range docs {
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(d.Data)
		if len(d.Data) > 0 && d.Data[len(d.Data)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}
