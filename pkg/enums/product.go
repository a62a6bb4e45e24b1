package enums

import "fmt"

// ProductCategory represents the canonical catalog categories.
type ProductCategory string

const (
	ProductCategoryTShirt    ProductCategory = "t_shirt"
	ProductCategoryShirt     ProductCategory = "shirt"
	ProductCategoryJeans     ProductCategory = "jeans"
	ProductCategoryKurta     ProductCategory = "kurta"
	ProductCategorySaree     ProductCategory = "saree"
	ProductCategoryDress     ProductCategory = "dress"
	ProductCategoryJacket    ProductCategory = "jacket"
	ProductCategoryFootwear  ProductCategory = "footwear"
	ProductCategoryAccessory ProductCategory = "accessory"
)

var validProductCategories = []ProductCategory{
	ProductCategoryTShirt,
	ProductCategoryShirt,
	ProductCategoryJeans,
	ProductCategoryKurta,
	ProductCategorySaree,
	ProductCategoryDress,
	ProductCategoryJacket,
	ProductCategoryFootwear,
	ProductCategoryAccessory,
}

// String implements fmt.Stringer.
func (c ProductCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ProductCategory.
func (c ProductCategory) IsValid() bool {
	for _, candidate := range validProductCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseProductCategory converts raw input into a ProductCategory.
func ParseProductCategory(value string) (ProductCategory, error) {
	for _, candidate := range validProductCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product category %q", value)
}

// ApparelSize is the size axis a SKU is stocked under.
type ApparelSize string

const (
	ApparelSizeXS       ApparelSize = "XS"
	ApparelSizeS        ApparelSize = "S"
	ApparelSizeM        ApparelSize = "M"
	ApparelSizeL        ApparelSize = "L"
	ApparelSizeXL       ApparelSize = "XL"
	ApparelSizeXXL      ApparelSize = "XXL"
	ApparelSizeFreeSize ApparelSize = "FREE"
)

var validApparelSizes = []ApparelSize{
	ApparelSizeXS,
	ApparelSizeS,
	ApparelSizeM,
	ApparelSizeL,
	ApparelSizeXL,
	ApparelSizeXXL,
	ApparelSizeFreeSize,
}

// String implements fmt.Stringer.
func (s ApparelSize) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ApparelSize.
func (s ApparelSize) IsValid() bool {
	for _, candidate := range validApparelSizes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseApparelSize converts raw input into an ApparelSize.
func ParseApparelSize(value string) (ApparelSize, error) {
	for _, candidate := range validApparelSizes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid apparel size %q", value)
}
