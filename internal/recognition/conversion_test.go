package recognition

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	return img
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Prepare", func() {
	var (
		data        []byte
		contentType string
		img         Image
		err         error
	)

	JustBeforeEach(func() {
		img, err = Prepare(data, contentType)
	})

	When("the upload is a PNG", func() {
		BeforeEach(func() {
			data = encodePNG(testImage(40, 30))
			contentType = "image/png"
		})

		It("keeps the data as is", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Data).To(Equal(data))
		})

		It("records the pixel size", func() {
			Expect(img.Width).To(Equal(40))
			Expect(img.Height).To(Equal(30))
			Expect(img.ContentType).To(Equal("image/png"))
		})
	})

	When("the upload is a JPEG", func() {
		BeforeEach(func() {
			data = encodeJPEG(testImage(24, 48))
			contentType = "IMAGE/JPEG "
		})

		It("converts it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			_, format, decodeErr := image.DecodeConfig(bytes.NewReader(img.Data))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
			Expect(img.Width).To(Equal(24))
			Expect(img.Height).To(Equal(48))
		})
	})

	When("the content type is missing", func() {
		BeforeEach(func() {
			data = encodeJPEG(testImage(10, 10))
			contentType = ""
		})

		It("treats it as a JPEG", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(img.ContentType).To(Equal("image/png"))
		})
	})

	When("the data is not an image", func() {
		BeforeEach(func() {
			data = []byte("definitely not an image")
			contentType = "image/jpeg"
		})

		It("returns an unsupported format error", func() {
			Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
		})
	})
})

var _ = Describe("Enhance", func() {
	It("upscales short images to the OCR height", func() {
		data, bounds, err := Enhance(Image{Data: encodePNG(testImage(20, 40))})
		Expect(err).NotTo(HaveOccurred())
		Expect(bounds.Dy()).To(Equal(minOCRHeight))
		Expect(bounds.Dx()).To(Equal(600))

		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Height).To(Equal(minOCRHeight))
	})

	It("leaves tall images at their size", func() {
		_, bounds, err := Enhance(Image{Data: encodePNG(testImage(10, 1300))})
		Expect(err).NotTo(HaveOccurred())
		Expect(bounds.Dx()).To(Equal(10))
		Expect(bounds.Dy()).To(Equal(1300))
	})

	It("returns an error for undecodable data", func() {
		_, _, err := Enhance(Image{Data: []byte("nope")})
		Expect(err).To(MatchError(ContainSubstring("decoding image")))
	})
})

var _ = Describe("isHEICFormat", func() {
	It("detects the heic brand", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic0000"))).To(BeTrue())
	})

	It("rejects short data", func() {
		Expect(isHEICFormat([]byte("ftyp"))).To(BeFalse())
	})

	It("rejects other brands", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypisom0000"))).To(BeFalse())
	})
})
