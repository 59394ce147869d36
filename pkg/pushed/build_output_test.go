package pushed

import (
	"bytes"
	"encoding/json"
	"testing"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/types"
	. "github.com/onsi/gomega"
)

func TestBuildOutput(t *testing.T) {
	RegisterTestingT(t)
	h1, err := v1.NewHash("sha256:deadb33fdeadb33fdeadb33fdeadb33fdeadb33fdeadb33fdeadb33fdeadb33f")
	Expect(err).NotTo(HaveOccurred())
	root := v1.Descriptor{MediaType: types.OCIManifestSchema1, Digest: h1}
	platforms := []v1.Platform{{OS: "linux", Architecture: "amd64"}}

	t.Run("image with registry", func(t *testing.T) {
		RegisterTestingT(t)
		a, err := New("localhost:1234/test/foo:latest", root, platforms)
		Expect(err).NotTo(HaveOccurred())
		o := &BuildOutput{}
		o.Add(a, nil)
		Expect(o.Builds).To(HaveLen(1))

		var buf bytes.Buffer
		Expect(o.WriteJSON(&buf)).To(Succeed())
		Expect(buf.String()).To(Equal("{" +
			"\"builds\":[{" +
			"\"imageName\":\"localhost:1234/test/foo\"," +
			"\"tag\":\"localhost:1234/test/foo:latest@" + h1.String() + "\"," +
			"\"mediaType\":\"application/vnd.oci.image.manifest.v1+json\"," +
			"\"platforms\":[\"linux/amd64\"]}]}"))

		ref := o.Builds[0].Reference()
		Expect(ref.Context().RegistryStr()).To(Equal("localhost:1234"))
		Expect(ref.Context().RepositoryStr()).To(Equal("test/foo"))
		Expect(ref.Identifier()).To(Equal("latest"))
		Expect(o.Builds[0].Digest()).To(Equal(h1))
	})

	t.Run("image with default registry", func(t *testing.T) {
		RegisterTestingT(t)
		var a Artifact
		Expect(json.Unmarshal([]byte(`{"imageName":"ubuntu/foo","tag":"ubuntu/foo:a@`+h1.String()+`","mediaType":"application/vnd.oci.image.index.v1+json","platforms":["linux/amd64","linux/arm64/v8"]}`), &a)).To(Succeed())
		ref := a.Reference()
		Expect(ref.Context().RegistryStr()).To(Equal("index.docker.io"))
		Expect(ref.Context().RepositoryStr()).To(Equal("ubuntu/foo"))
		Expect(ref.Identifier()).To(Equal("a"))
		Expect(a.Digest()).To(Equal(h1))
		Expect(a.Platforms[1].Variant).To(Equal("v8"))
	})

	t.Run("empty", func(t *testing.T) {
		RegisterTestingT(t)
		var buf bytes.Buffer
		Expect((&BuildOutput{}).WriteJSON(&buf)).To(Succeed())
		Expect(buf.String()).To(Equal(`{"builds":[]}`))
	})

	t.Run("print", func(t *testing.T) {
		RegisterTestingT(t)
		a, err := New("ubuntu/foo:1", root, platforms)
		Expect(err).NotTo(HaveOccurred())
		o := &BuildOutput{}
		o.Add(a)
		var buf bytes.Buffer
		o.Print(&buf)
		Expect(buf.String()).To(Equal("ubuntu/foo:1@" + h1.String() + "\n"))
	})
}
