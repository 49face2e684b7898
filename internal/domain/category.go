package domain

// Category is a product role within a shopping spec, the unit of cart selection.
type Category string

const (
	// Skiing / outdoor
	CategoryJacket          Category = "jacket"
	CategoryPants           Category = "pants"
	CategoryBaseLayerTop    Category = "base_layer_top"
	CategoryBaseLayerBottom Category = "base_layer_bottom"
	CategoryGloves          Category = "gloves"
	CategoryGoggles         Category = "goggles"
	CategoryHelmet          Category = "helmet"
	CategorySocks           Category = "socks"
	CategoryNeckGaiter      Category = "neck_gaiter"
	// General shopping
	CategoryHeadset      Category = "headset"
	CategoryMonitor      Category = "monitor"
	CategoryKeyboard     Category = "keyboard"
	CategoryLaptop       Category = "laptop"
	CategoryRunningShoes Category = "running_shoes"
	CategorySneakers     Category = "sneakers"
	CategoryTShirt       Category = "t_shirt"
	CategoryHoodie       Category = "hoodie"
	CategoryBag          Category = "bag"
	CategoryWatch        Category = "watch"
	CategoryDeskChair    Category = "desk_chair"
	CategoryWebcam       Category = "webcam"
	CategoryPhone        Category = "phone"
	CategoryTablet       Category = "tablet"
	CategorySpeakers     Category = "speakers"
	CategoryGPU          Category = "gpu"
	// Events
	CategorySnacks      Category = "snacks"
	CategoryBadges      Category = "badges"
	CategoryAdapters    Category = "adapters"
	CategoryDecorations Category = "decorations"
	CategoryPrizes      Category = "prizes"
	// Single item added from liked list or by URL
	CategoryCustom Category = "custom"
)

// Priority marks how important a category is within a shopping spec.
type Priority string

const (
	PriorityMustHave   Priority = "must_have"
	PriorityNiceToHave Priority = "nice_to_have"
)
