package generation

// imageInput is the model input for image generation.
// Output parameters are fixed: one 2K square image with prompt enhancement.
type imageInput struct {
	ImageInput                []string `json:"image_input"`
	Prompt                    string   `json:"prompt"`
	Size                      string   `json:"size"`
	Width                     int      `json:"width"`
	Height                    int      `json:"height"`
	MaxImages                 int      `json:"max_images"`
	AspectRatio               string   `json:"aspect_ratio"`
	EnhancePrompt             bool     `json:"enhance_prompt"`
	SequentialImageGeneration string   `json:"sequential_image_generation"`
}

// videoInput is the model input for image-to-video generation.
type videoInput struct {
	Image           string `json:"image"`
	Prompt          string `json:"prompt"`
	NumFrames       int    `json:"num_frames"`
	Resolution      string `json:"resolution"`
	FramesPerSecond int    `json:"frames_per_second"`
}

func newImageInput(req Request) imageInput {
	return imageInput{
		ImageInput:                req.ReferenceImages,
		Prompt:                    req.Prompt,
		Size:                      "2K",
		Width:                     2048,
		Height:                    2048,
		MaxImages:                 1,
		AspectRatio:               "1:1",
		EnhancePrompt:             true,
		SequentialImageGeneration: "disabled",
	}
}

// newVideoInput uses only the first reference image.
func newVideoInput(req Request) videoInput {
	return videoInput{
		Image:           req.ReferenceImages[0],
		Prompt:          req.Prompt,
		NumFrames:       81,
		Resolution:      "480p",
		FramesPerSecond: 16,
	}
}
