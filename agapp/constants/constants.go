package constants

const (
	DefaultModelName string = "default"

	ModelsPath    string = "/ag/models"
	BackbonesPath string = "/ag/backbones"
	ImagesPath    string = "/ag/images"

	DataSetPath string = "../DataSet"
	TrainPath   string = "../DataSet/train"
	TestPath    string = "../DataSet/test"

	// 저장 모델 경로 (config.yaml + weights.bin)
	SavedModelPath string = "ResNet50.model"

	DefaultArchitecture string = "resnet50"

	ImageSize    int     = 224
	BatchSize    int     = 32
	TrainEpochs  int     = 20
	LearningRate float64 = 1e-4

	GenderThreshold float64 = 0.5

	FeatureCacheSize int = 4096
)

// ImageFormats 평가 대상 이미지 확장자
var ImageFormats = []string{"png", "jpg", "jpeg"}
