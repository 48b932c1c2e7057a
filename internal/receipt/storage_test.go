package receipt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("writes the file under the base path and returns its name", func() {
			savedPath, err := storage.Save("receipt.jpg", []byte("image bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(savedPath).To(Equal("receipt.jpg"))
			Expect(filepath.Join(tmpDir, "receipt.jpg")).To(BeAnExistingFile())
		})
	})

	Describe("Get", func() {
		When("file exists", func() {
			BeforeEach(func() {
				_, err := storage.Save("receipt.jpg", []byte("image bytes"))
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns the stored bytes", func() {
				data, err := storage.Get("receipt.jpg")
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("image bytes"))
			})
		})

		When("file does not exist", func() {
			It("returns the error", func() {
				_, err := storage.Get("missing.jpg")
				Expect(err).To(MatchError(ContainSubstring("reading file")))
			})
		})
	})

	Describe("Delete", func() {
		When("file exists", func() {
			BeforeEach(func() {
				_, err := storage.Save("receipt.jpg", []byte("image bytes"))
				Expect(err).NotTo(HaveOccurred())
			})

			It("removes the file from disk", func() {
				Expect(storage.Delete("receipt.jpg")).To(Succeed())
				Expect(filepath.Join(tmpDir, "receipt.jpg")).NotTo(BeAnExistingFile())
			})
		})

		When("file does not exist", func() {
			It("returns the error", func() {
				Expect(storage.Delete("missing.jpg")).To(MatchError(ContainSubstring("deleting file")))
			})
		})
	})

	Describe("paths outside the base directory", func() {
		var secret string

		BeforeEach(func() {
			parent := GinkgoT().TempDir()
			tmpDir = filepath.Join(parent, "receipts")
			var err error
			storage, err = NewLocalStorage(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			secret = filepath.Join(parent, "secret.txt")
			Expect(os.WriteFile(secret, []byte("TOP SECRET"), 0600)).To(Succeed())
		})

		It("refuses to read them", func() {
			_, err := storage.Get("../secret.txt")
			Expect(err).To(MatchError(ErrInvalidPath))
		})

		It("refuses to delete them", func() {
			Expect(storage.Delete("../secret.txt")).To(MatchError(ErrInvalidPath))
			Expect(secret).To(BeAnExistingFile())
		})

		It("refuses to write them", func() {
			_, err := storage.Save("../../escaped.jpg", []byte("data"))
			Expect(err).To(MatchError(ErrInvalidPath))
		})

		It("refuses absolute paths", func() {
			_, err := storage.Get(secret)
			Expect(err).To(MatchError(ErrInvalidPath))
		})
	})

	Describe("NewLocalStorage", func() {
		It("creates a missing directory", func() {
			storagePath := filepath.Join(GinkgoT().TempDir(), "receipts")
			_, err := NewLocalStorage(storagePath)
			Expect(err).NotTo(HaveOccurred())
			Expect(storagePath).To(BeADirectory())
		})
	})
})

// mockS3 is an in-memory S3API
type mockS3 struct {
	objects      map[string][]byte
	contentTypes map[string]string
	putErr       error
	getErr       error
	deleteErr    error
}

func newMockS3() *mockS3 {
	return &mockS3{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	m.objects[key] = data
	m.contentTypes[key] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	delete(m.objects, aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

var _ = Describe("S3Storage", func() {
	var (
		client  *mockS3
		storage *S3Storage
	)

	BeforeEach(func() {
		client = newMockS3()
		storage = NewS3StorageWithClient(client, "receipts-bucket", "uploads")
	})

	Describe("Save", func() {
		It("puts the object under the prefix", func() {
			name, err := storage.Save("abc_receipt.png", []byte("\x89PNG\r\n\x1a\nrest"))
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("abc_receipt.png"))
			Expect(client.objects).To(HaveKey("receipts-bucket/uploads/abc_receipt.png"))
		})

		It("records the detected content type", func() {
			_, err := storage.Save("abc_receipt.png", []byte("\x89PNG\r\n\x1a\nrest"))
			Expect(err).NotTo(HaveOccurred())
			Expect(client.contentTypes["receipts-bucket/uploads/abc_receipt.png"]).To(Equal("image/png"))
		})

		When("the upload fails", func() {
			BeforeEach(func() {
				client.putErr = errors.New("access denied")
			})

			It("wraps the error", func() {
				_, err := storage.Save("abc_receipt.png", []byte("data"))
				Expect(err).To(MatchError(ContainSubstring("uploading to s3: access denied")))
			})
		})
	})

	Describe("Get", func() {
		It("returns the stored bytes", func() {
			_, err := storage.Save("abc.jpg", []byte("image bytes"))
			Expect(err).NotTo(HaveOccurred())

			data, err := storage.Get("abc.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("image bytes"))
		})

		It("returns an error for a missing object", func() {
			_, err := storage.Get("missing.jpg")
			Expect(err).To(MatchError(ContainSubstring("downloading from s3")))
		})
	})

	Describe("Delete", func() {
		It("removes the object", func() {
			_, err := storage.Save("abc.jpg", []byte("image bytes"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete("abc.jpg")).To(Succeed())
			Expect(client.objects).To(BeEmpty())
		})

		When("the delete fails", func() {
			BeforeEach(func() {
				client.deleteErr = errors.New("throttled")
			})

			It("wraps the error", func() {
				Expect(storage.Delete("abc.jpg")).To(MatchError(ContainSubstring("deleting from s3: throttled")))
			})
		})
	})

	Describe("keys outside the prefix", func() {
		It("are rejected before calling S3", func() {
			client.objects["receipts-bucket/secret.txt"] = []byte("TOP SECRET")

			_, err := storage.Get("../secret.txt")
			Expect(err).To(MatchError(ErrInvalidPath))
			Expect(storage.Delete("../secret.txt")).To(MatchError(ErrInvalidPath))
			Expect(client.objects).To(HaveKey("receipts-bucket/secret.txt"))
		})
	})

	Describe("NewS3Storage", func() {
		It("requires a bucket", func() {
			_, err := NewS3Storage(context.Background(), "us-east-1", "", "")
			Expect(err).To(MatchError("s3 bucket is required"))
		})
	})
})
