//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/dbrox/privacyd/internal/domain"
	"github.com/dbrox/privacyd/internal/infra"
	"github.com/dbrox/privacyd/test/fixtures"
)

var _ = Describe("Baseline Scanner", func() {
	var (
		tree    *fixtures.FakeProcTree
		scanner *infra.ProcScanner
	)

	BeforeEach(func() {
		tree = fixtures.NewFakeProcTree(GinkgoT().TempDir())
		Expect(tree.AddNoise()).To(Succeed())
		GinkgoT().Setenv("HOST_PROC", tree.Root)

		scanner = infra.NewProcScanner("/dev/video", "", zap.NewNop())
	})

	Describe("scanning pre-existing camera opens", func() {
		Context("with camera descriptors spread across processes", func() {
			It("counts per device path and seeds debt-free", func() {
				Expect(tree.AddProcess(1201, "/dev/video0", "/dev/null")).To(Succeed())
				Expect(tree.AddProcess(1202, "/dev/video0", "/dev/video2")).To(Succeed())
				Expect(tree.AddProcess(1203, "/tmp/download.part")).To(Succeed())

				snapshot, err := scanner.Scan(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(snapshot).To(Equal(map[string]domain.RefCount{
					"/dev/video0": {Count: 2, Floor: 0},
					"/dev/video2": {Count: 1, Floor: 0},
				}))
			})
		})

		Context("after a process exits", func() {
			It("reflects the new descriptor table on the next scan", func() {
				Expect(tree.AddProcess(1201, "/dev/video0")).To(Succeed())

				snapshot, err := scanner.Scan(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(snapshot).To(HaveLen(1))

				Expect(tree.RemoveProcess(1201)).To(Succeed())

				snapshot, err = scanner.Scan(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(snapshot).To(BeEmpty())
			})
		})

		Context("inside a sandboxed runtime", func() {
			It("degrades to an empty snapshot", func() {
				Expect(tree.AddProcess(1201, "/dev/video0")).To(Succeed())

				marker := filepath.Join(GinkgoT().TempDir(), ".flatpak-info")
				Expect(os.WriteFile(marker, []byte{}, 0o644)).To(Succeed())

				sandboxed := infra.NewProcScanner("/dev/video", marker, zap.NewNop())
				snapshot, err := sandboxed.Scan(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(snapshot).To(BeEmpty())
			})
		})
	})
})
